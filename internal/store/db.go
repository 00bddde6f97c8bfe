package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and ensures the
// schema exists.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return &DB{Client: db}, err
	}
	if err := migrate(db); err != nil {
		return &DB{Client: db}, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		branch             TEXT NOT NULL,
		enroll_no          TEXT NOT NULL DEFAULT '',
		year_of_study      TEXT NOT NULL DEFAULT '',
		id_card_image_url  TEXT NOT NULL DEFAULT '',
		card_status        TEXT NOT NULL DEFAULT 'none',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_students_id_ci ON students (lower(id));

	CREATE TABLE IF NOT EXISTS branches (
		name TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS entry_logs (
		id            TEXT PRIMARY KEY,
		student_id    TEXT NOT NULL,
		student_name  TEXT NOT NULL,
		branch        TEXT NOT NULL,
		occurred_at   TIMESTAMPTZ NOT NULL,
		event_type    TEXT NOT NULL,
		image_match   BOOLEAN
	);
	CREATE INDEX IF NOT EXISTS idx_entry_logs_student ON entry_logs (lower(student_id), occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entry_logs_time    ON entry_logs (occurred_at DESC);

	CREATE TABLE IF NOT EXISTS kiosks (
		kiosk_id   TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		subject    TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
