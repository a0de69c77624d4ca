package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FlashCardTag marks the payload the flash-card UI submits for a whole set of sessions.
const FlashCardTag = "flash_card_sessions"

// Answer is a learner response parsed once at the boundary.
// It is one of TextAnswer, FlashCardResult or MalformedAnswer.
type Answer interface {
	isAnswer()
}

type TextAnswer string

type FlashCardResult struct {
	CorrectCount  int     `json:"correctCount"`
	TotalSessions int     `json:"totalSessions"`
	Percentage    float64 `json:"percentage"`
}

// MalformedAnswer is a flash-card payload that could not be used for scoring.
// It is kept so the attempt can still be completed and scored as zero.
type MalformedAnswer struct {
	Raw    string
	Reason string
}

func (TextAnswer) isAnswer()      {}
func (FlashCardResult) isAnswer() {}
func (MalformedAnswer) isAnswer() {}

// ParseAnswer interprets raw. Flash-card questions expect the JSON payload
// {type, correctCount, totalSessions, percentage}; everything else is plain text.
func ParseAnswer(raw string, flashCard bool) Answer {
	if !flashCard {
		return TextAnswer(raw)
	}
	fc, err := parseFlashCard(raw)
	if err != nil {
		return MalformedAnswer{Raw: raw, Reason: err.Error()}
	}
	return fc
}

func parseFlashCard(raw string) (FlashCardResult, error) {
	var p struct {
		Type          string   `json:"type"`
		CorrectCount  int      `json:"correctCount"`
		TotalSessions int      `json:"totalSessions"`
		Percentage    *float64 `json:"percentage"`
	}
	if strings.TrimSpace(raw) == "" {
		return FlashCardResult{}, errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return FlashCardResult{}, fmt.Errorf("decode: %w", err)
	}
	if p.Type != "" && p.Type != FlashCardTag {
		return FlashCardResult{}, fmt.Errorf("unexpected type %q", p.Type)
	}
	if p.Percentage == nil {
		return FlashCardResult{}, errors.New("missing percentage")
	}
	if *p.Percentage < 0 || *p.Percentage > 100 {
		return FlashCardResult{}, fmt.Errorf("percentage %v out of range", *p.Percentage)
	}
	if p.CorrectCount < 0 || p.TotalSessions < 0 {
		return FlashCardResult{}, errors.New("negative session counts")
	}
	return FlashCardResult{
		CorrectCount:  p.CorrectCount,
		TotalSessions: p.TotalSessions,
		Percentage:    *p.Percentage,
	}, nil
}
