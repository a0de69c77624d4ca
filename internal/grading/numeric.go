package grading

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// numericStrategy accepts an exact string match, or any response whose
// numeric value is within tol of the key ("12", "12.0" and " 12 " are equal).
type numericStrategy struct{ tol float64 }

func (s numericStrategy) Grade(_ context.Context, q Q, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	str, ok := a.(TextAnswer)
	if !ok {
		return res, nil
	}
	if string(str) == q.Correct {
		res.AutoPoints = q.Points
		res.Correct = true
		return res, nil
	}
	rv, rOK := parseFloatLoose(string(str))
	tv, tOK := parseFloatLoose(q.Correct)
	if !rOK || !tOK {
		return res, nil
	}
	if math.Abs(rv-tv) <= s.tol {
		res.AutoPoints = q.Points
		res.Correct = true
	}
	return res, nil
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
