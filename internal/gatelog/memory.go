package gatelog

import (
	"context"
	"sort"
	"sync"

	"libtrack/internal/student"
)

// Memory is a mutex-guarded in-memory Store for dev mode and tests. It
// deliberately keeps events in arbitrary append order; readers sort by
// timestamp, matching what the contract demands of real storage.
type Memory struct {
	mu   sync.RWMutex
	logs []EntryLog
}

// NewMemory creates an empty in-memory log store.
func NewMemory() *Memory {
	return &Memory{}
}

// LastEventFor returns the most recent event for a student by timestamp.
func (m *Memory) LastEventFor(ctx context.Context, studentID string) (*EntryLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := student.NormalizeID(studentID)
	var last *EntryLog
	for i := range m.logs {
		l := m.logs[i]
		if student.NormalizeID(l.StudentID) != key {
			continue
		}
		if last == nil || l.Timestamp.After(last.Timestamp) {
			last = &m.logs[i]
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

// Append adds an event after checking the student's last event still
// matches expectedLastID.
func (m *Memory) Append(ctx context.Context, l EntryLog, expectedLastID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := student.NormalizeID(l.StudentID)
	lastID := ""
	var lastTS = l.Timestamp
	first := true
	for _, e := range m.logs {
		if student.NormalizeID(e.StudentID) != key {
			continue
		}
		if first || e.Timestamp.After(lastTS) {
			lastID = e.ID
			lastTS = e.Timestamp
			first = false
		}
	}
	if lastID != expectedLastID {
		return ErrStaleHistory
	}
	m.logs = append(m.logs, l)
	return nil
}

// List returns events newest first with basic filters.
func (m *Memory) List(ctx context.Context, f Filter) ([]EntryLog, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	m.mu.RLock()
	var res []EntryLog
	for _, l := range m.logs {
		if f.StudentID != "" && student.NormalizeID(l.StudentID) != student.NormalizeID(f.StudentID) {
			continue
		}
		if f.Branch != "" && l.Branch != f.Branch {
			continue
		}
		if f.Type != "" && l.Type != f.Type {
			continue
		}
		res = append(res, l)
	}
	m.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if f.Offset >= len(res) {
		return nil, nil
	}
	res = res[f.Offset:]
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}
