// Package mental generates flash-card sessions for mental arithmetic quizzes.
package mental

import (
	"encoding/json"
	"math"
	"math/rand/v2"
)

// Rand is the randomness Generate draws from. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide math/rand/v2 source and is safe for concurrent use.
var DefaultRand Rand = globalRand{}

// maxResample bounds how often a step that would go negative or overflow is
// redrawn before it falls back to addition.
const maxResample = 8

// Term is one number on a flash card together with the operator that joins it to
// the running total. The first term of a session carries no operator.
type Term struct {
	Op    Operation
	Value int
}

type Session struct {
	SessionID          int     `json:"session_id"`
	Terms              []Term  `json:"-"`
	CorrectAnswer      int     `json:"correct_answer"`
	DisplayTimeSeconds float64 `json:"display_time_seconds"`
}

// MarshalJSON renders terms as a flat list of numbers and operator tags: [5, "+", 3, "-", 2].
func (s Session) MarshalJSON() ([]byte, error) {
	numbers := make([]any, 0, len(s.Terms)*2)
	for i, t := range s.Terms {
		if i > 0 {
			numbers = append(numbers, t.Op.Symbol())
		}
		numbers = append(numbers, t.Value)
	}
	type plain Session
	return json.Marshal(struct {
		plain
		Numbers []any `json:"numbers"`
	}{plain(s), numbers})
}

// Generate produces sessionCount independent sessions. It has no side effects
// beyond consuming rng. When AllowNegative is false no intermediate or final
// total of any session is negative.
func Generate(rng Rand, settings Settings, sessionCount int) ([]Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	cfg := settings.Normalize()
	if sessionCount < 1 {
		sessionCount = cfg.SessionCount
	}
	if rng == nil {
		rng = DefaultRand
	}

	out := make([]Session, 0, sessionCount)
	for i := 1; i <= sessionCount; i++ {
		terms, total := generateTerms(rng, cfg)
		out = append(out, Session{
			SessionID:          i,
			Terms:              terms,
			CorrectAnswer:      total,
			DisplayTimeSeconds: cfg.DisplayTimeSeconds,
		})
	}
	return out, nil
}

func generateTerms(rng Rand, cfg Settings) ([]Term, int) {
	terms := make([]Term, 0, cfg.NumbersPerSession)
	first := drawOperand(rng, cfg.NumberRange)
	terms = append(terms, Term{Value: first})
	total := first

	for len(terms) < cfg.NumbersPerSession {
		op := drawOperation(rng, cfg.Operations)
		n := drawOperand(rng, cfg.NumberRange)
		next, ok := step(total, op, n, cfg.AllowNegative)
		for tries := 0; !ok; tries++ {
			if tries == maxResample {
				op, next = fallback(total, n, cfg.AllowNegative)
				break
			}
			op = drawOperation(rng, cfg.Operations)
			n = drawOperand(rng, cfg.NumberRange)
			next, ok = step(total, op, n, cfg.AllowNegative)
		}
		total = next
		terms = append(terms, Term{Op: op, Value: n})
	}
	return terms, total
}

func drawOperand(rng Rand, r Range) int {
	return r.Min + rng.IntN(r.Max-r.Min+1)
}

func drawOperation(rng Rand, ops []Operation) Operation {
	return ops[rng.IntN(len(ops))]
}

// step applies one term. It fails when the result overflows int or, unless
// allowNegative, drops below zero.
func step(total int, op Operation, n int, allowNegative bool) (int, bool) {
	next, ok := apply(total, op, n)
	return next, ok && (allowNegative || next >= 0)
}

// fallback picks addition, or subtraction when addition would overflow.
// Operands are positive and bounded, so one of the two always fits.
func fallback(total, n int, allowNegative bool) (Operation, int) {
	if next, ok := step(total, Addition, n, allowNegative); ok {
		return Addition, next
	}
	next, _ := apply(total, Subtraction, n)
	return Subtraction, next
}

// apply reports false when the result does not fit in int.
func apply(total int, op Operation, n int) (int, bool) {
	switch op {
	case Subtraction:
		r := total - n
		return r, (n >= 0) == (r <= total)
	case Multiplication:
		if total == 0 || n == 0 {
			return 0, true
		}
		r := total * n
		if r/n != total || (total == -1 && n == math.MinInt) || (n == -1 && total == math.MinInt) {
			return r, false
		}
		return r, true
	default:
		r := total + n
		return r, (n >= 0) == (r >= total)
	}
}
