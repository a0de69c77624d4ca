package quiz

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abakus-kids/academy/internal/grading"
)

type ItemResult struct {
	QuestionID    QuestionKey `json:"question_id"`
	Answer        string      `json:"answer,omitempty"`
	CorrectAnswer string      `json:"correct_answer,omitempty"`
	Explanation   string      `json:"explanation,omitempty"`
	grading.Result
}

type Outcome struct {
	Score     float64       `json:"score"`
	Earned    float64       `json:"earned_points"`
	Total     float64       `json:"total_points"`
	Passed    bool          `json:"passed"`
	Items     []ItemResult  `json:"items"`
	Malformed []QuestionKey `json:"-"`
}

// ScoreAttempt grades every question against the recorded answers.
// score = 100 * earned / total, rounded to two decimals; 0 when total is 0.
// Malformed flash-card payloads earn nothing and are listed in Outcome.Malformed.
func ScoreAttempt(ctx context.Context, g grading.Grader, cfg Config, questions []Question, answers map[QuestionKey]RecordedAnswer) (Outcome, error) {
	var out Outcome
	earned, total := decimal.Zero, decimal.Zero
	for _, q := range questions {
		item := ItemResult{QuestionID: q.Key, CorrectAnswer: q.CorrectAnswer, Explanation: q.Explanation}
		var ans grading.Answer
		if rec, ok := answers[q.Key]; ok {
			item.Answer = rec.Raw
			ans = rec.Value
			if ans == nil {
				ans = grading.ParseAnswer(rec.Raw, q.expectsFlashCard())
			}
		}
		res, err := g.Grade(ctx, grading.Q{Type: gradingType(q), Points: q.Points, Correct: q.CorrectAnswer}, ans)
		if err != nil {
			return Outcome{}, fmt.Errorf("grade %s: %w", q.Key, err)
		}
		if res.Malformed {
			out.Malformed = append(out.Malformed, q.Key)
		}
		item.Result = res
		out.Items = append(out.Items, item)
		earned = earned.Add(decimal.NewFromFloat(res.AutoPoints))
		total = total.Add(decimal.NewFromFloat(q.Points))
	}
	out.Earned = earned.InexactFloat64()
	out.Total = total.InexactFloat64()
	if total.IsPositive() {
		out.Score = earned.Mul(decimal.NewFromInt(100)).Div(total).Round(2).InexactFloat64()
	}
	out.Passed = out.Score >= float64(cfg.PassingScorePercent)
	return out, nil
}

func gradingType(q Question) string {
	if q.expectsFlashCard() {
		return grading.TypeMentalArithmetic
	}
	return q.Type
}

// HasPassed compares the attempt's score with the passing score it started under.
func HasPassed(a Attempt) bool {
	score := 0.0
	if a.Score != nil {
		score = *a.Score
	}
	return score >= float64(a.Snapshot.PassingScorePercent)
}

// BestScore is the highest score among completed attempts, or nil when none completed.
func BestScore(attempts []Attempt) *float64 {
	var best *float64
	for _, a := range attempts {
		if a.Status != StatusCompleted || a.Score == nil {
			continue
		}
		if best == nil || *a.Score > *best {
			s := *a.Score
			best = &s
		}
	}
	return best
}
