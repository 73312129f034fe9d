package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-admission-api/internal/models"
)

// ErrStaleStatus is returned by WriteStatus when the stored status no longer
// matches the expected one.
var ErrStaleStatus = errors.New("subject status changed concurrently")

// ErrDuplicateSubject is returned by Create when the email is already registered.
var ErrDuplicateSubject = errors.New("subject already registered")

const uniqueViolation = "23505"

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// SubjectRepository persists admission subjects and their status history.
type SubjectRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewSubjectRepository constructs the repository. metrics may be nil.
func NewSubjectRepository(db *sqlx.DB, metrics queryObserver) *SubjectRepository {
	return &SubjectRepository{db: db, metrics: metrics}
}

type subjectRow struct {
	ID        string         `db:"id"`
	FullName  string         `db:"full_name"`
	Email     string         `db:"email"`
	Role      string         `db:"role"`
	Status    sql.NullString `db:"application_status"`
	Active    bool           `db:"active"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r subjectRow) toModel() *models.Subject {
	return &models.Subject{
		ID:        r.ID,
		FullName:  r.FullName,
		Email:     r.Email,
		Role:      models.Role(r.Role),
		Status:    models.NormalizeStatus(r.Status.String),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Create inserts a new subject. Missing id, status and timestamps are filled in.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	defer r.observe("subject_create", time.Now())
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.Status == "" {
		subject.Status = models.DefaultStatus
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = subject.CreatedAt

	const query = `INSERT INTO admission_subjects (id, full_name, email, role, application_status, active, created_at, updated_at)
	VALUES (:id, :full_name, :email, :role, :application_status, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateSubject
		}
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// ReadStatus loads the subject's role, status and active flag. A NULL status
// reads as the default applicant status.
func (r *SubjectRepository) ReadStatus(ctx context.Context, id string) (*models.Subject, error) {
	defer r.observe("subject_read", time.Now())
	const query = `SELECT id, full_name, email, role, application_status, active, created_at, updated_at
	FROM admission_subjects WHERE id = $1 LIMIT 1`
	var row subjectRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("read subject status: %w", err)
	}
	return row.toModel(), nil
}

// ReadActive reports whether the subject is active.
func (r *SubjectRepository) ReadActive(ctx context.Context, id string) (bool, error) {
	defer r.observe("subject_read_active", time.Now())
	const query = `SELECT active FROM admission_subjects WHERE id = $1`
	var active bool
	if err := r.db.GetContext(ctx, &active, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		return false, fmt.Errorf("read subject active: %w", err)
	}
	return active, nil
}

// WriteStatus moves the subject from expected to next and appends a history
// row, in one transaction. It returns ErrStaleStatus when the stored status
// is no longer expected, or the subject left the workflow meanwhile.
func (r *SubjectRepository) WriteStatus(ctx context.Context, id string, expected, next models.Status, at time.Time) (err error) {
	defer r.observe("subject_write_status", time.Now())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status write: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE admission_subjects SET application_status = $3, updated_at = $4
	WHERE id = $1 AND COALESCE(application_status, 'applicant') = $2 AND active = TRUE AND role = 'student'`
	result, err := tx.ExecContext(ctx, update, id, string(expected), string(next), at)
	if err != nil {
		return fmt.Errorf("update subject status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check subject status rows: %w", err)
	}
	if rows == 0 {
		return ErrStaleStatus
	}

	const insert = `INSERT INTO admission_status_history (id, subject_id, from_status, to_status, changed_at)
	VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insert, uuid.NewString(), id, string(expected), string(next), at); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit status write: %w", err)
	}
	return nil
}

// History returns the latest committed transitions of a subject, newest first.
func (r *SubjectRepository) History(ctx context.Context, subjectID string, limit int) ([]models.StatusHistory, error) {
	defer r.observe("subject_history", time.Now())
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, subject_id, from_status, to_status, changed_at
	FROM admission_status_history WHERE subject_id = $1 ORDER BY changed_at DESC LIMIT $2`
	var history []models.StatusHistory
	if err := r.db.SelectContext(ctx, &history, query, subjectID, limit); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

func (r *SubjectRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}
