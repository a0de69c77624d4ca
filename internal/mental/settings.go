package mental

import (
	"fmt"
	"strings"
)

type Operation string

const (
	Addition       Operation = "addition"
	Subtraction    Operation = "subtraction"
	Multiplication Operation = "multiplication"
)

// Symbol is the operator tag rendered between numbers on a flash card.
func (o Operation) Symbol() string {
	switch o {
	case Addition:
		return "+"
	case Subtraction:
		return "-"
	case Multiplication:
		return "*"
	default:
		return "?"
	}
}

func (o Operation) valid() bool {
	switch o {
	case Addition, Subtraction, Multiplication:
		return true
	}
	return false
}

type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Settings configures flash-card generation for a mental arithmetic quiz.
// Zero values are replaced by defaults in Normalize.
type Settings struct {
	Operations         []Operation `json:"operations,omitempty"`
	NumberRange        Range       `json:"number_range"`
	NumbersPerSession  int         `json:"numbers_per_session,omitempty"`
	SessionCount       int         `json:"session_count,omitempty"`
	DisplayTimeSeconds float64     `json:"display_time_seconds,omitempty"`
	AllowNegative      bool        `json:"allow_negative"`
	PointsPerSession   int         `json:"points_per_session,omitempty"`
}

const (
	DefaultSessionCount       = 3
	DefaultPointsPerSession   = 10
	DefaultNumbersPerSession  = 3
	DefaultDisplayTimeSeconds = 2

	MaxOperand           = 1_000_000
	MaxNumbersPerSession = 20
	MaxSessionCount      = 100
)

// Normalize returns a copy with defaults filled in and out-of-range values clamped.
// Unknown operations are kept; Validate reports them.
func (s Settings) Normalize() Settings {
	out := s
	if len(out.Operations) == 0 {
		out.Operations = []Operation{Addition}
	} else {
		out.Operations = append([]Operation(nil), s.Operations...)
	}
	if out.NumberRange.Min < 1 {
		out.NumberRange.Min = 1
	}
	if out.NumberRange.Max == 0 {
		out.NumberRange.Max = 9
	}
	if out.NumberRange.Max < out.NumberRange.Min {
		out.NumberRange.Max = out.NumberRange.Min
	}
	if out.NumbersPerSession < 2 {
		out.NumbersPerSession = DefaultNumbersPerSession
	}
	if out.SessionCount < 1 {
		out.SessionCount = DefaultSessionCount
	}
	if out.DisplayTimeSeconds <= 0 {
		out.DisplayTimeSeconds = DefaultDisplayTimeSeconds
	}
	if out.PointsPerSession <= 0 {
		out.PointsPerSession = DefaultPointsPerSession
	}
	return out
}

func (s Settings) Validate() error {
	var bad []string
	for _, op := range s.Operations {
		if !op.valid() {
			bad = append(bad, string(op))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("unsupported operations: %s", strings.Join(bad, ", "))
	}
	if s.NumberRange.Max != 0 && s.NumberRange.Max < s.NumberRange.Min {
		return fmt.Errorf("number range max %d below min %d", s.NumberRange.Max, s.NumberRange.Min)
	}
	if s.NumberRange.Max > MaxOperand || s.NumberRange.Min > MaxOperand {
		return fmt.Errorf("number range above %d", MaxOperand)
	}
	if s.NumbersPerSession > MaxNumbersPerSession {
		return fmt.Errorf("numbers per session %d above %d", s.NumbersPerSession, MaxNumbersPerSession)
	}
	if s.SessionCount > MaxSessionCount {
		return fmt.Errorf("session count %d above %d", s.SessionCount, MaxSessionCount)
	}
	return nil
}
