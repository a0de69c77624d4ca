package quiz

import (
	"context"
	"time"
)

type EventType string

const (
	EventQuizUpdated      EventType = "quiz.updated"
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptCompleted EventType = "attempt.completed"
	EventAttemptExpired   EventType = "attempt.expired"
)

type Event struct {
	Type      EventType `json:"type"`
	QuizID    string    `json:"quiz_id"`
	ProgramID string    `json:"program_id,omitempty"`
	AttemptID string    `json:"attempt_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Score     *float64  `json:"score,omitempty"`
	At        time.Time `json:"at"`
}

// Hook is told about every mutation the service commits. Errors are logged
// by the service and never undo the mutation.
type Hook interface {
	OnEvent(ctx context.Context, e Event) error
}

type HookFunc func(ctx context.Context, e Event) error

func (f HookFunc) OnEvent(ctx context.Context, e Event) error { return f(ctx, e) }
