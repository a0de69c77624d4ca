package grading

import (
	"context"
	"fmt"
)

// Question types with dedicated strategies. Any other type is graded by exact match.
const (
	TypeMultipleChoice   = "multiple_choice"
	TypeTrueFalse        = "true_false"
	TypeText             = "text"
	TypeShortAnswer      = "short_answer"
	TypeNumeric          = "numeric"
	TypeMentalArithmetic = "mental_arithmetic"
)

// Q is the view of a question needed for grading.
type Q struct {
	Type    string
	Points  float64
	Correct string
}

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints float64  `json:"points"`
	MaxPoints  float64  `json:"max_points"`
	Correct    bool     `json:"correct"`
	Malformed  bool     `json:"malformed,omitempty"`
	Feedback   []string `json:"feedback,omitempty"`
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, a Answer) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, a Answer) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
	fallback   Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, a Answer) (Result, error) {
	if a == nil {
		return Result{MaxPoints: q.Points, Feedback: []string{"no answer"}}, nil
	}
	s, ok := g.strategies[q.Type]
	if !ok {
		s = g.fallback
	}
	return s.Grade(ctx, q, a)
}

type Option func(*config)

type config struct {
	CaseInsensitiveText bool // grade "text" like "short_answer"
	NumericTolerance    float64
}

func WithCaseInsensitiveText(b bool) Option { return func(c *config) { c.CaseInsensitiveText = b } }
func WithNumericTolerance(t float64) Option { return func(c *config) { c.NumericTolerance = t } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{NumericTolerance: 1e-9}
	for _, o := range opts {
		o(cfg)
	}
	var text Strategy = exactStrategy{}
	if cfg.CaseInsensitiveText {
		text = normalizedStrategy{}
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice:   exactStrategy{},
			TypeTrueFalse:        exactStrategy{},
			TypeText:             text,
			TypeShortAnswer:      normalizedStrategy{},
			TypeNumeric:          numericStrategy{tol: cfg.NumericTolerance},
			TypeMentalArithmetic: flashCardStrategy{},
		},
		fallback: exactStrategy{},
	}
}

// --- Strategies ---

type exactStrategy struct{}

func (exactStrategy) Grade(_ context.Context, q Q, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	s, ok := a.(TextAnswer)
	if !ok {
		return res, nil
	}
	if string(s) == q.Correct {
		res.AutoPoints = q.Points
		res.Correct = true
	}
	return res, nil
}

type normalizedStrategy struct{}

func (normalizedStrategy) Grade(_ context.Context, q Q, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	s, ok := a.(TextAnswer)
	if !ok {
		return res, nil
	}
	if normalize(string(s)) == normalize(q.Correct) {
		res.AutoPoints = q.Points
		res.Correct = true
	}
	return res, nil
}

// flashCardStrategy awards the question's points in proportion to the
// percentage the flash-card UI reported.
type flashCardStrategy struct{}

func (flashCardStrategy) Grade(_ context.Context, q Q, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	switch v := a.(type) {
	case FlashCardResult:
		res.AutoPoints = q.Points * v.Percentage / 100
		res.Correct = v.Percentage >= 100
		res.Feedback = append(res.Feedback, fmt.Sprintf("sessions correct: %d/%d", v.CorrectCount, v.TotalSessions))
	case MalformedAnswer:
		res.Malformed = true
		res.Feedback = append(res.Feedback, "unreadable flash-card result: "+v.Reason)
	default:
		res.Malformed = true
		res.Feedback = append(res.Feedback, "flash-card result expected")
	}
	return res, nil
}
