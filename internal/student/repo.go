package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateID is returned when an insert or rename would collide with an
// existing student id (case-insensitive).
var ErrDuplicateID = errors.New("student id already registered")

// Store is the persistence contract for student records. FindByID matches
// ids case-insensitively after trimming; it returns (nil, nil) on no match.
type Store interface {
	List(ctx context.Context) ([]Student, error)
	FindByID(ctx context.Context, rawID string) (*Student, error)
	Insert(ctx context.Context, st Student) error
	Update(ctx context.Context, id string, st Student) error
	Delete(ctx context.Context, id string) error
	SetCardStatus(ctx context.Context, id, status string) error
}

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentCols = `id, name, branch, enroll_no, year_of_study, id_card_image_url, card_status, created_at`

// List returns all students ordered by id.
func (r *Repository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studentCols+` FROM students ORDER BY lower(id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var st Student
		if err := scanStudent(rows, &st); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// FindByID returns the student whose id matches the trimmed, case-folded
// input, or nil when no such student exists.
func (r *Repository) FindByID(ctx context.Context, rawID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentCols+` FROM students WHERE lower(id) = $1
	`, NormalizeID(rawID))
	var st Student
	if err := scanStudent(row, &st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// Insert writes a new student. A case-insensitive id collision yields
// ErrDuplicateID.
func (r *Repository) Insert(ctx context.Context, st Student) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, name, branch, enroll_no, year_of_study, id_card_image_url, card_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, st.ID, st.Name, st.Branch, st.EnrollNo, st.YearOfStudy, st.IDCardImageURL, st.CardStatus, st.CreatedAt)
	return mapUniqueViolation(err)
}

// Update replaces the record stored under id, including a possible rename.
// CreatedAt is never touched.
func (r *Repository) Update(ctx context.Context, id string, st Student) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET id = $2, name = $3, branch = $4, enroll_no = $5, year_of_study = $6,
		    id_card_image_url = $7, card_status = $8
		WHERE lower(id) = $1
	`, NormalizeID(id), st.ID, st.Name, st.Branch, st.EnrollNo, st.YearOfStudy, st.IDCardImageURL, st.CardStatus)
	if err != nil {
		return mapUniqueViolation(err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return NotFoundError{ID: NormalizeID(id)}
	}
	return err
}

// Delete removes a student. Logs are never cascaded; they keep their
// denormalized snapshot fields.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE lower(id) = $1`, NormalizeID(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return NotFoundError{ID: NormalizeID(id)}
	}
	return err
}

// SetCardStatus advances the card verification lifecycle for a student.
func (r *Repository) SetCardStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE students SET card_status = $2 WHERE lower(id) = $1
	`, NormalizeID(id), status)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner, st *Student) error {
	return row.Scan(&st.ID, &st.Name, &st.Branch, &st.EnrollNo, &st.YearOfStudy,
		&st.IDCardImageURL, &st.CardStatus, &st.CreatedAt)
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateID
	}
	return err
}
