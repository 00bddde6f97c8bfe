// Package branch maintains the registry of branch names offered on
// registration forms. Students may also carry free-form custom values, so
// deleting a registry entry never touches existing student records.
package branch

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrExists is returned when adding a branch name already in the registry.
var ErrExists = errors.New("branch already registered")

// Registry is the persistence contract for the branch name set.
type Registry interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}

// Repository stores branch names in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns all branch names sorted.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM branches ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

// Add inserts a branch name; a duplicate yields ErrExists.
func (r *Repository) Add(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("branch name required")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO branches (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrExists
	}
	return err
}

// Remove deletes a branch name. Students assigned to it are left as-is.
func (r *Repository) Remove(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM branches WHERE name = $1`, strings.TrimSpace(name))
	return err
}

// Memory is an in-memory Registry for dev mode and tests.
type Memory struct {
	mu    sync.RWMutex
	names map[string]bool
}

// NewMemory creates a registry pre-seeded with the given names.
func NewMemory(seed ...string) *Memory {
	m := &Memory{names: make(map[string]bool)}
	for _, n := range seed {
		m.names[n] = true
	}
	return m
}

// List returns all branch names sorted.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]string, 0, len(m.names))
	for n := range m.names {
		res = append(res, n)
	}
	sort.Strings(res)
	return res, nil
}

// Add inserts a branch name; a duplicate yields ErrExists.
func (m *Memory) Add(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("branch name required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names[name] {
		return ErrExists
	}
	m.names[name] = true
	return nil
}

// Remove deletes a branch name.
func (m *Memory) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.names, strings.TrimSpace(name))
	return nil
}
