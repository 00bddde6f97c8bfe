package gatelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"libtrack/internal/student"
)

// ErrStaleHistory means another writer appended an event for the same
// student between the history read and the append. The caller should
// re-read the history and classify again.
var ErrStaleHistory = errors.New("student history changed since read")

// Store is the persistence contract for gate events. Append performs an
// atomic check-and-append: it fails with ErrStaleHistory unless the
// student's most recent event still has id expectedLastID ("" for no
// history). That closes the multi-kiosk race on the alternation rule.
type Store interface {
	LastEventFor(ctx context.Context, studentID string) (*EntryLog, error)
	Append(ctx context.Context, log EntryLog, expectedLastID string) error
	List(ctx context.Context, f Filter) ([]EntryLog, error)
}

// Repository persists gate events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const logCols = `id, student_id, student_name, branch, occurred_at, event_type, image_match`

// LastEventFor returns the most recent event for a student by timestamp,
// or nil when the student has no history. Storage order is not trusted.
func (r *Repository) LastEventFor(ctx context.Context, studentID string) (*EntryLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+logCols+` FROM entry_logs
		WHERE lower(student_id) = $1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, student.NormalizeID(studentID))
	var l EntryLog
	if err := scanLog(row, &l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// Append writes a new event inside a transaction holding a per-student
// advisory lock, re-checking that the last event is still expectedLastID.
func (r *Repository) Append(ctx context.Context, l EntryLog, expectedLastID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	key := student.NormalizeID(l.StudentID)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return err
	}

	var lastID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM entry_logs
		WHERE lower(student_id) = $1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, key).Scan(&lastID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if lastID != expectedLastID {
		return ErrStaleHistory
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entry_logs (id, student_id, student_name, branch, occurred_at, event_type, image_match)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, l.ID, l.StudentID, l.StudentName, l.Branch, l.Timestamp, l.Type, l.ImageMatch); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns events newest first with basic filters.
func (r *Repository) List(ctx context.Context, f Filter) ([]EntryLog, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + logCols + ` FROM entry_logs`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		clauses = append(clauses, fmt.Sprintf("lower(student_id) = $%d", len(args)+1))
		args = append(args, student.NormalizeID(f.StudentID))
	}
	if f.Branch != "" {
		clauses = append(clauses, fmt.Sprintf("branch = $%d", len(args)+1))
		args = append(args, f.Branch)
	}
	if f.Type != "" {
		clauses = append(clauses, fmt.Sprintf("event_type = $%d", len(args)+1))
		args = append(args, f.Type)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []EntryLog
	for rows.Next() {
		var l EntryLog
		if err := scanLog(rows, &l); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner, l *EntryLog) error {
	return row.Scan(&l.ID, &l.StudentID, &l.StudentName, &l.Branch, &l.Timestamp, &l.Type, &l.ImageMatch)
}
