package quiz

import (
	"encoding/json"
	"time"

	"github.com/abakus-kids/academy/internal/grading"
	"github.com/abakus-kids/academy/internal/mental"
)

type Type string

const (
	TypeStandard         Type = "standard"
	TypeMentalArithmetic Type = "mental_arithmetic"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
)

// Settings is the free-form quiz configuration. Only the flash-card generator reads it today.
type Settings = mental.Settings

type Quiz struct {
	ID          string `json:"id"`
	LessonID    string `json:"lesson_id"`
	ProgramID   string `json:"program_id,omitempty"` // resolved from the lesson
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        Type   `json:"type"`

	MaxAttempts                 int  `json:"max_attempts"`
	PassingScorePercent         int  `json:"passing_score_percent"`
	TimeLimitSeconds            *int `json:"time_limit_seconds,omitempty"`
	PerQuestionTimeLimitSeconds *int `json:"per_question_time_limit_seconds,omitempty"`

	ShuffleQuestions       bool `json:"shuffle_questions"`
	ShuffleAnswers         bool `json:"shuffle_answers"`
	ShowResultsImmediately bool `json:"show_results_immediately"`
	IsActive               bool `json:"is_active"`

	Settings Settings `json:"settings"`

	CreatedAt int64 `json:"created_at,omitempty"`
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// Config is the part of a quiz an attempt is held to once it has started.
type Config struct {
	QuizID                      string   `json:"quiz_id"`
	Type                        Type     `json:"type"`
	PassingScorePercent         int      `json:"passing_score_percent"`
	TimeLimitSeconds            *int     `json:"time_limit_seconds,omitempty"`
	PerQuestionTimeLimitSeconds *int     `json:"per_question_time_limit_seconds,omitempty"`
	ShuffleQuestions            bool     `json:"shuffle_questions"`
	ShuffleAnswers              bool     `json:"shuffle_answers"`
	ShowResultsImmediately      bool     `json:"show_results_immediately"`
	Settings                    Settings `json:"settings"`
}

func (q Quiz) Config() Config {
	return Config{
		QuizID:                      q.ID,
		Type:                        q.Type,
		PassingScorePercent:         q.PassingScorePercent,
		TimeLimitSeconds:            q.TimeLimitSeconds,
		PerQuestionTimeLimitSeconds: q.PerQuestionTimeLimitSeconds,
		ShuffleQuestions:            q.ShuffleQuestions,
		ShuffleAnswers:              q.ShuffleAnswers,
		ShowResultsImmediately:      q.ShowResultsImmediately,
		Settings:                    q.Settings,
	}
}

type Question struct {
	Key           QuestionKey     `json:"id"`
	QuizID        string          `json:"quiz_id"`
	Order         int             `json:"order"`
	Type          string          `json:"type"`
	Text          string          `json:"question_text"`
	Data          json.RawMessage `json:"question_data,omitempty"`
	Options       []string        `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
	Points        float64         `json:"points"`
	Explanation   string          `json:"explanation,omitempty"`

	// Sessions is filled at presentation time for mental arithmetic questions and never stored.
	Sessions []mental.Session `json:"sessions,omitempty"`
}

// expectsFlashCard reports whether answers to q are flash-card payloads.
func (q Question) expectsFlashCard() bool {
	return q.Key.IsSynthetic() || q.Type == string(TypeMentalArithmetic)
}

// LearnerView strips what a learner must not see while taking the quiz.
func (q Question) LearnerView() Question {
	q.CorrectAnswer = ""
	q.Explanation = ""
	return q
}

type RecordedAnswer struct {
	Raw              string         `json:"answer"`
	Value            grading.Answer `json:"-"`
	TimeTakenSeconds *int           `json:"time_taken_seconds,omitempty"`
	AnsweredAt       time.Time      `json:"answered_at"`
}

type Attempt struct {
	ID          string                         `json:"id"`
	QuizID      string                         `json:"quiz_id"`
	UserID      string                         `json:"user_id"`
	Status      Status                         `json:"status"`
	StartedAt   time.Time                      `json:"started_at"`
	CompletedAt *time.Time                     `json:"completed_at,omitempty"`
	Score       *float64                       `json:"score,omitempty"`
	Answers     map[QuestionKey]RecordedAnswer `json:"answers"`
	Snapshot    Config                         `json:"-"`
}

func (a Attempt) Closed() bool { return a.Status != StatusInProgress }
