package quiz

import (
	"context"
	"fmt"
)

// Policy decides whether a learner may view or start a quiz.
type Policy struct {
	enrollments Enrollments
}

func NewPolicy(e Enrollments) *Policy { return &Policy{enrollments: e} }

// CanView fails with ErrNotFound for an inactive quiz, so it looks absent,
// and with ErrAccessDenied when the learner's enrollment is not approved.
func (p *Policy) CanView(ctx context.Context, userID string, q Quiz) error {
	if !q.IsActive {
		return fmt.Errorf("quiz %s: %w", q.ID, ErrNotFound)
	}
	ok, err := p.enrollments.Approved(ctx, userID, q.ProgramID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !ok {
		return fmt.Errorf("program %s: %w", q.ProgramID, ErrAccessDenied)
	}
	return nil
}

// CanStart requires CanView, no in_progress attempt, and fewer closed
// attempts than MaxAttempts. attempts are the learner's attempts for q.
// An in_progress attempt should be resumed instead, which Service.Start does
// before asking here.
func (p *Policy) CanStart(ctx context.Context, userID string, q Quiz, attempts []Attempt) error {
	if err := p.CanView(ctx, userID, q); err != nil {
		return err
	}
	closed := 0
	for _, a := range attempts {
		switch a.Status {
		case StatusInProgress:
			return fmt.Errorf("resume attempt %s: %w", a.ID, ErrInvalidAttemptState)
		case StatusCompleted, StatusExpired:
			closed++
		}
	}
	if closed >= maxAttempts(q) {
		return fmt.Errorf("%d of %d attempts used: %w", closed, maxAttempts(q), ErrAttemptLimitExceeded)
	}
	return nil
}

func maxAttempts(q Quiz) int {
	if q.MaxAttempts < 1 {
		return 1
	}
	return q.MaxAttempts
}
