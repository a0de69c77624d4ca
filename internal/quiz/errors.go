package quiz

import "errors"

var (
	// ErrNotFound covers absent quizzes, attempts and questions as well as
	// inactive quizzes and attempts owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied means the learner has no approved enrollment for the program.
	ErrAccessDenied = errors.New("access denied")
	// ErrAttemptLimitExceeded blocks a new attempt once max_attempts are used.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrInvalidAttemptState is returned for actions on an attempt that is no longer in progress.
	ErrInvalidAttemptState = errors.New("attempt not in progress")
	// ErrInvalidQuestion is returned for a question id that is not part of the quiz.
	ErrInvalidQuestion = errors.New("question not part of quiz")
	// ErrInvalidQuiz is returned by PutQuiz for a quiz that fails validation.
	ErrInvalidQuiz = errors.New("invalid quiz")

	// errActiveAttemptExists is returned by stores when the one-active-attempt
	// constraint rejects an insert.
	errActiveAttemptExists = errors.New("active attempt exists")
)
