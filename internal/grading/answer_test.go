package grading_test

import (
	"testing"

	"github.com/abakus-kids/academy/internal/grading"
)

func TestParseAnswer_Text(t *testing.T) {
	a := grading.ParseAnswer(`{"percentage": 50}`, false)
	if got, ok := a.(grading.TextAnswer); !ok || string(got) != `{"percentage": 50}` {
		t.Fatalf("non flash-card answers must stay text, got %#v", a)
	}
}

func TestParseAnswer_FlashCard(t *testing.T) {
	a := grading.ParseAnswer(`{"type":"flash_card_sessions","correctCount":2,"totalSessions":3,"percentage":85}`, true)
	fc, ok := a.(grading.FlashCardResult)
	if !ok {
		t.Fatalf("expected FlashCardResult, got %#v", a)
	}
	if fc.Percentage != 85 || fc.CorrectCount != 2 || fc.TotalSessions != 3 {
		t.Fatalf("got %+v", fc)
	}
}

func TestParseAnswer_FlashCardWithoutType(t *testing.T) {
	a := grading.ParseAnswer(`{"percentage":85,"correctCount":2,"totalSessions":3}`, true)
	if _, ok := a.(grading.FlashCardResult); !ok {
		t.Fatalf("type tag should be optional, got %#v", a)
	}
}

func TestParseAnswer_Malformed(t *testing.T) {
	cases := map[string]string{
		"garbage":          `{{{`,
		"empty":            ``,
		"missing percent":  `{"correctCount":1,"totalSessions":3}`,
		"out of range":     `{"percentage":140}`,
		"wrong type":       `{"type":"essay","percentage":50}`,
		"negative counts":  `{"percentage":50,"correctCount":-1}`,
		"json but a array": `[1,2,3]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			a := grading.ParseAnswer(raw, true)
			m, ok := a.(grading.MalformedAnswer)
			if !ok {
				t.Fatalf("expected MalformedAnswer, got %#v", a)
			}
			if m.Raw != raw || m.Reason == "" {
				t.Fatalf("got %+v", m)
			}
		})
	}
}
