package quiz

import (
	"fmt"
	"sort"

	"github.com/abakus-kids/academy/internal/grading"
	"github.com/abakus-kids/academy/internal/mental"
)

// Bank resolves the ordered question list an attempt presents.
type Bank struct {
	rng mental.Rand
}

// NewBank uses rng for shuffling and flash-card generation; nil means mental.DefaultRand.
func NewBank(rng mental.Rand) *Bank {
	if rng == nil {
		rng = mental.DefaultRand
	}
	return &Bank{rng: rng}
}

// Skeleton is the question list in stored order without generated sessions.
// Scoring uses it so grading never depends on what a take happened to draw.
func (b *Bank) Skeleton(cfg Config, persisted []Question) []Question {
	out := make([]Question, len(persisted))
	copy(out, persisted)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })

	if cfg.Type == TypeMentalArithmetic && len(out) == 0 {
		s := cfg.Settings.Normalize()
		out = append(out, Question{
			Key:           SyntheticKey,
			QuizID:        cfg.QuizID,
			Order:         1,
			Type:          string(TypeMentalArithmetic),
			Text:          "Flash cards",
			CorrectAnswer: grading.FlashCardTag,
			Points:        float64(s.SessionCount * s.PointsPerSession),
		})
	}
	return out
}

// Resolve returns the questions for one take: fresh flash-card sessions on
// every mental arithmetic question, shuffled when the quiz asks for it.
func (b *Bank) Resolve(cfg Config, persisted []Question) ([]Question, error) {
	out := b.Skeleton(cfg, persisted)
	s := cfg.Settings.Normalize()
	for i := range out {
		if !out[i].expectsFlashCard() {
			continue
		}
		sessions, err := mental.Generate(b.rng, s, s.SessionCount)
		if err != nil {
			return nil, fmt.Errorf("generate sessions for %s: %w", out[i].Key, err)
		}
		out[i].Sessions = sessions
	}
	if cfg.ShuffleQuestions {
		shuffle(b.rng, len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	if cfg.ShuffleAnswers {
		for i := range out {
			opts := append([]string(nil), out[i].Options...)
			shuffle(b.rng, len(opts), func(x, y int) { opts[x], opts[y] = opts[y], opts[x] })
			out[i].Options = opts
		}
	}
	return out, nil
}

// shuffle is Fisher-Yates over rng.
func shuffle(rng mental.Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, rng.IntN(i+1))
	}
}
