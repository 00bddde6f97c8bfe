package student

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-memory Store for dev mode and tests.
type Memory struct {
	mu       sync.RWMutex
	students map[string]Student // keyed by normalized id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{students: make(map[string]Student)}
}

// List returns a copy of all students.
func (m *Memory) List(ctx context.Context) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Student, 0, len(m.students))
	for _, st := range m.students {
		res = append(res, st)
	}
	return res, nil
}

// FindByID matches trimmed, case-folded ids.
func (m *Memory) FindByID(ctx context.Context, rawID string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.students[NormalizeID(rawID)]; ok {
		return &st, nil
	}
	return nil, nil
}

// Insert adds a student, rejecting case-insensitive id collisions.
func (m *Memory) Insert(ctx context.Context, st Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeID(st.ID)
	if _, exists := m.students[key]; exists {
		return ErrDuplicateID
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	m.students[key] = st
	return nil
}

// Update replaces the record under id, handling renames.
func (m *Memory) Update(ctx context.Context, id string, st Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldKey := NormalizeID(id)
	cur, ok := m.students[oldKey]
	if !ok {
		return NotFoundError{ID: oldKey}
	}
	newKey := NormalizeID(st.ID)
	if newKey != oldKey {
		if _, exists := m.students[newKey]; exists {
			return ErrDuplicateID
		}
		delete(m.students, oldKey)
	}
	st.CreatedAt = cur.CreatedAt
	m.students[newKey] = st
	return nil
}

// Delete removes a student.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeID(id)
	if _, ok := m.students[key]; !ok {
		return NotFoundError{ID: key}
	}
	delete(m.students, key)
	return nil
}

// SetCardStatus updates the card verification status in place.
func (m *Memory) SetCardStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeID(id)
	st, ok := m.students[key]
	if !ok {
		return NotFoundError{ID: key}
	}
	st.CardStatus = status
	m.students[key] = st
	return nil
}
