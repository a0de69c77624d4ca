package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.RWMutex
	quizzes   map[string]Quiz
	questions map[string][]Question
	attempts  map[string]Attempt
	order     []string // attempt ids in creation order
}

// NewInMemoryStore keeps everything in process memory. Quizzes must carry
// their ProgramID since there is no lesson table to resolve it from.
func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:   map[string]Quiz{},
		questions: map[string][]Question{},
		attempts:  map[string]Attempt{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz, questions []Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	m.questions[q.ID] = append([]Question(nil), questions...)
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *memoryStore) ListQuestions(_ context.Context, quizID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Question(nil), m.questions[quizID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return Attempt{}, fmt.Errorf("quiz %s: %w", a.QuizID, ErrNotFound)
	}
	for _, x := range m.attempts {
		if x.UserID == a.UserID && x.QuizID == a.QuizID && x.Status == StatusInProgress {
			return Attempt{}, errActiveAttemptExists
		}
	}
	a.Answers = map[QuestionKey]RecordedAnswer{}
	m.attempts[a.ID] = a
	m.order = append(m.order, a.ID)
	return copyAttempt(a), nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return copyAttempt(a), nil
}

func (m *memoryStore) FindInProgress(_ context.Context, userID, quizID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.UserID == userID && a.QuizID == quizID && a.Status == StatusInProgress {
			return copyAttempt(a), nil
		}
	}
	return Attempt{}, ErrNotFound
}

func (m *memoryStore) ListAttempts(_ context.Context, quizID, userID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, id := range m.order {
		a := m.attempts[id]
		if a.QuizID != quizID || (userID != "" && a.UserID != userID) {
			continue
		}
		out = append(out, copyAttempt(a))
	}
	return out, nil
}

func (m *memoryStore) PutAnswer(_ context.Context, attemptID string, key QuestionKey, ans RecordedAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if a.Status != StatusInProgress {
		return ErrInvalidAttemptState
	}
	a.Answers[key] = ans
	return nil
}

func (m *memoryStore) Finish(_ context.Context, attemptID string, status Status, score *float64, at time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrInvalidAttemptState
	}
	a.Status = status
	a.Score = score
	a.CompletedAt = &at
	m.attempts[attemptID] = a
	return copyAttempt(a), nil
}

func copyAttempt(a Attempt) Attempt {
	answers := make(map[QuestionKey]RecordedAnswer, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	return a
}
