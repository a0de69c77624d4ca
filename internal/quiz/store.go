package quiz

import (
	"context"
	"time"
)

// Store persists quizzes, questions and attempts.
//
// Implementations must enforce at most one in_progress attempt per
// (user, quiz) and make answer writes and state transitions conditional on
// the attempt still being in progress, without read-modify-write of the
// whole answer set.
type Store interface {
	PutQuiz(ctx context.Context, q Quiz, questions []Question) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]Question, error)

	// CreateAttempt returns errActiveAttemptExists when the user already has
	// an in_progress attempt for the quiz.
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FindInProgress(ctx context.Context, userID, quizID string) (Attempt, error)
	// ListAttempts returns attempts for a quiz, oldest first. Empty userID lists every learner.
	ListAttempts(ctx context.Context, quizID, userID string) ([]Attempt, error)

	// PutAnswer upserts one answer. ErrInvalidAttemptState if the attempt is not in progress.
	PutAnswer(ctx context.Context, attemptID string, key QuestionKey, ans RecordedAnswer) error
	// Finish moves an in_progress attempt to a terminal status.
	// ErrInvalidAttemptState if it already left in_progress.
	Finish(ctx context.Context, attemptID string, status Status, score *float64, at time.Time) (Attempt, error)
}

// Enrollments answers whether a learner is approved for a program.
type Enrollments interface {
	Approved(ctx context.Context, userID, programID string) (bool, error)
}
