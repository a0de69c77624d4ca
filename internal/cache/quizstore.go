package cache

import (
	"context"
	"time"

	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
)

// QuizStore caches quiz metadata in front of another quiz.Store. Questions
// and attempts always go to the underlying store.
type QuizStore struct {
	quiz.Store
	cache Cache
	ttl   time.Duration
}

func NewQuizStore(s quiz.Store, c Cache, ttl time.Duration) *QuizStore {
	return &QuizStore{Store: s, cache: c, ttl: ttl}
}

func (s *QuizStore) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	return GetOrLoad(ctx, s.cache, QuizKey(id), s.ttl, func(ctx context.Context) (quiz.Quiz, error) {
		return s.Store.GetQuiz(ctx, id)
	})
}

func (s *QuizStore) PutQuiz(ctx context.Context, q quiz.Quiz, questions []quiz.Question) error {
	if err := s.Store.PutQuiz(ctx, q, questions); err != nil {
		return err
	}
	return s.cache.Delete(ctx, QuizKey(q.ID))
}

// Invalidator drops cached entries a quiz event makes stale.
type Invalidator struct {
	cache Cache
	log   *logger.Logger
}

func NewInvalidator(c Cache, log *logger.Logger) *Invalidator {
	return &Invalidator{cache: c, log: log.With("service", "CacheInvalidator")}
}

func (i *Invalidator) OnEvent(ctx context.Context, e quiz.Event) error {
	if e.Type != quiz.EventQuizUpdated {
		return nil
	}
	i.log.Debug("invalidating quiz cache", "quiz_id", e.QuizID)
	return i.cache.Delete(ctx, QuizKey(e.QuizID), ProgramsKey)
}

