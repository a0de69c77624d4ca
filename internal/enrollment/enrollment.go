package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abakus-kids/academy/internal/logger"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound      = errors.New("enrollment not found")
	ErrInvalidStatus = errors.New("invalid enrollment status")
)

type Enrollment struct {
	UserID      string     `json:"user_id"`
	ProgramID   string     `json:"program_id"`
	Status      Status     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
}

type row struct {
	UserID      string         `db:"user_id"`
	ProgramID   string         `db:"program_id"`
	Status      string         `db:"status"`
	RequestedAt int64          `db:"requested_at"`
	ReviewedAt  sql.NullInt64  `db:"reviewed_at"`
	ReviewedBy  sql.NullString `db:"reviewed_by"`
}

func (r row) enrollment() Enrollment {
	e := Enrollment{
		UserID:      r.UserID,
		ProgramID:   r.ProgramID,
		Status:      Status(r.Status),
		RequestedAt: time.Unix(r.RequestedAt, 0).UTC(),
		ReviewedBy:  r.ReviewedBy.String,
	}
	if r.ReviewedAt.Valid {
		t := time.Unix(r.ReviewedAt.Int64, 0).UTC()
		e.ReviewedAt = &t
	}
	return e
}

// Store tracks which learners may use which programs. It satisfies
// quiz.Enrollments.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
	now func() time.Time
}

func NewStore(db *sqlx.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With("service", "EnrollmentStore"), now: time.Now}
}

// Request records a pending enrollment. Requesting again is a no-op and
// never downgrades an approved or rejected enrollment.
func (s *Store) Request(ctx context.Context, userID, programID string) (Enrollment, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO enrollments (user_id,program_id,status,requested_at)
		VALUES (?,?,?,?) ON CONFLICT (user_id, program_id) DO NOTHING`),
		userID, programID, string(StatusPending), s.now().Unix())
	if err != nil {
		return Enrollment{}, fmt.Errorf("request enrollment: %w", err)
	}
	return s.Get(ctx, userID, programID)
}

// Review approves or rejects an enrollment. An admin may approve a learner
// who never asked, so a missing row is created.
func (s *Store) Review(ctx context.Context, userID, programID string, status Status, reviewer string) (Enrollment, error) {
	if status != StatusApproved && status != StatusRejected {
		return Enrollment{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO enrollments
		(user_id,program_id,status,requested_at,reviewed_at,reviewed_by) VALUES (?,?,?,?,?,?)
		ON CONFLICT (user_id, program_id) DO UPDATE SET status=excluded.status,
		 reviewed_at=excluded.reviewed_at, reviewed_by=excluded.reviewed_by`),
		userID, programID, string(status), now, now, reviewer)
	if err != nil {
		return Enrollment{}, fmt.Errorf("review enrollment: %w", err)
	}
	s.log.Info("enrollment reviewed", "user_id", userID, "program_id", programID, "status", status, "by", reviewer)
	return s.Get(ctx, userID, programID)
}

func (s *Store) Get(ctx context.Context, userID, programID string) (Enrollment, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT user_id,program_id,status,requested_at,reviewed_at,reviewed_by
		FROM enrollments WHERE user_id=? AND program_id=?`), userID, programID)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, err
	}
	return r.enrollment(), nil
}

// Approved reports whether the learner has an approved enrollment.
func (s *Store) Approved(ctx context.Context, userID, programID string) (bool, error) {
	e, err := s.Get(ctx, userID, programID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.Status == StatusApproved, nil
}

// ListProgram returns enrollments for a program, optionally filtered by status.
func (s *Store) ListProgram(ctx context.Context, programID string, status Status) ([]Enrollment, error) {
	query := `SELECT user_id,program_id,status,requested_at,reviewed_at,reviewed_by
		FROM enrollments WHERE program_id=?`
	args := []any{programID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at, user_id`
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]Enrollment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.enrollment())
	}
	return out, nil
}
