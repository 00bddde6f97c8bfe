package student

import (
	"fmt"
	"strings"
	"time"
)

// BranchStaff is the distinguished branch value with relaxed requirements:
// staff members carry no enrollment number or year of study.
const BranchStaff = "Staff"

// Card verification lifecycle, advanced by the worker.
const (
	CardNone     = "none"
	CardPending  = "pending"
	CardVerified = "verified"
	CardFailed   = "failed"
)

var yearsOfStudy = map[string]bool{"FY": true, "SY": true, "TY": true}

// Student is a registered library member identified by an ID-card number.
type Student struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Branch         string    `json:"branch"`
	EnrollNo       string    `json:"enroll_no,omitempty"`
	YearOfStudy    string    `json:"year_of_study,omitempty"`
	IDCardImageURL string    `json:"id_card_image_url,omitempty"`
	CardStatus     string    `json:"card_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizeID trims and lowercases a raw id for case-insensitive lookups.
func NormalizeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NotFoundError reports that no student matched a scanned or typed id.
// It carries the normalized id so callers can suggest registration.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("student %q not registered", e.ID)
}

// Validate checks the field rules: non-empty id and name, and enrollment
// number plus year of study unless the branch is Staff.
func (s Student) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("student id required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name required")
	}
	if strings.TrimSpace(s.Branch) == "" {
		return fmt.Errorf("branch required")
	}
	if s.Branch == BranchStaff {
		return nil
	}
	if strings.TrimSpace(s.EnrollNo) == "" {
		return fmt.Errorf("enrollment number required for branch %s", s.Branch)
	}
	if !yearsOfStudy[s.YearOfStudy] {
		return fmt.Errorf("year of study must be FY, SY or TY, got %q", s.YearOfStudy)
	}
	return nil
}
