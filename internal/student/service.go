package student

import (
	"context"
	"strings"
	"time"
)

// Service coordinates student registration and admin edits over a Store.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Resolve maps a scanned or typed id to a stored student. It trims and
// case-folds the input; a miss is reported as NotFoundError carrying the
// normalized id so the caller can suggest registration.
func (s *Service) Resolve(ctx context.Context, rawID string) (*Student, error) {
	normalized := NormalizeID(rawID)
	if normalized == "" {
		return nil, NotFoundError{ID: normalized}
	}
	st, err := s.store.FindByID(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, NotFoundError{ID: normalized}
	}
	return st, nil
}

// Register validates and stores a new student. The stored id keeps the
// caller's casing; uniqueness is case-insensitive.
func (s *Service) Register(ctx context.Context, st Student) (Student, error) {
	st.ID = strings.TrimSpace(st.ID)
	st.Name = strings.TrimSpace(st.Name)
	if st.Branch == BranchStaff {
		st.EnrollNo = ""
		st.YearOfStudy = ""
	}
	if err := st.Validate(); err != nil {
		return Student{}, err
	}
	st.CreatedAt = time.Now().UTC()
	if st.IDCardImageURL != "" {
		st.CardStatus = CardPending
	} else {
		st.CardStatus = CardNone
	}
	if err := s.store.Insert(ctx, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

// Update replaces an existing record. A changed id is a rename and must not
// collide with another student. A replaced card image resets verification.
func (s *Service) Update(ctx context.Context, id string, st Student) (Student, error) {
	st.ID = strings.TrimSpace(st.ID)
	st.Name = strings.TrimSpace(st.Name)
	if st.Branch == BranchStaff {
		st.EnrollNo = ""
		st.YearOfStudy = ""
	}
	if err := st.Validate(); err != nil {
		return Student{}, err
	}
	cur, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if cur == nil {
		return Student{}, NotFoundError{ID: NormalizeID(id)}
	}
	st.CreatedAt = cur.CreatedAt
	switch {
	case st.IDCardImageURL == "":
		st.CardStatus = CardNone
	case st.IDCardImageURL != cur.IDCardImageURL:
		st.CardStatus = CardPending
	default:
		st.CardStatus = cur.CardStatus
	}
	if err := s.store.Update(ctx, id, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

// Delete removes a student. Existing logs keep their snapshot fields.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// List returns all students.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.store.List(ctx)
}

// SetCardStatus is used by the verification worker.
func (s *Service) SetCardStatus(ctx context.Context, id, status string) error {
	return s.store.SetCardStatus(ctx, id, status)
}
