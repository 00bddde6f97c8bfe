// Package kiosk tracks registered scan stations and their refresh tokens.
package kiosk

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"
)

// Store is the persistence contract for kiosks.
type Store interface {
	Register(ctx context.Context, kioskID string) error
	SaveRefreshToken(ctx context.Context, kioskID, token string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Repository persists kiosks in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Register ensures a kiosk record exists.
func (r *Repository) Register(ctx context.Context, kioskID string) error {
	if strings.TrimSpace(kioskID) == "" {
		return errors.New("kiosk id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kiosks (kiosk_id)
		VALUES ($1)
		ON CONFLICT (kiosk_id) DO NOTHING
	`, kioskID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, kioskID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, subject, expires_at)
		VALUES ($1, $2, $3)
	`, token, kioskID, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// Memory is an in-memory Store for dev mode and tests.
type Memory struct {
	mu      sync.Mutex
	kiosks  map[string]bool
	tokens  map[string]string // token -> subject
	revoked map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kiosks:  make(map[string]bool),
		tokens:  make(map[string]string),
		revoked: make(map[string]bool),
	}
}

// Register ensures a kiosk record exists.
func (m *Memory) Register(ctx context.Context, kioskID string) error {
	if strings.TrimSpace(kioskID) == "" {
		return errors.New("kiosk id required")
	}
	m.mu.Lock()
	m.kiosks[kioskID] = true
	m.mu.Unlock()
	return nil
}

// SaveRefreshToken stores a refresh token.
func (m *Memory) SaveRefreshToken(ctx context.Context, kioskID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	m.tokens[token] = kioskID
	m.mu.Unlock()
	return nil
}

// RevokeRefreshToken marks a token revoked.
func (m *Memory) RevokeRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.revoked[token] = true
	m.mu.Unlock()
	return nil
}
