// Package gatelog records library entry and exit events. Events for a
// student strictly alternate Entry/Exit starting with Entry, subject to a
// minimum re-scan interval; the alternation is decided by Classify before
// anything is written.
package gatelog

import "time"

// Event types. A student's first event is always EventEntry.
const (
	EventEntry = "Entry"
	EventExit  = "Exit"
)

// EntryLog is an immutable, append-only gate event. StudentName and Branch
// are snapshots of the student at write time and are never updated when the
// student record later changes or is deleted.
type EntryLog struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Branch      string    `json:"branch"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	ImageMatch  *bool     `json:"image_match,omitempty"`
}

// Filter narrows log listings. Zero values mean "any".
type Filter struct {
	StudentID string
	Branch    string
	Type      string
	Limit     int
	Offset    int
}
