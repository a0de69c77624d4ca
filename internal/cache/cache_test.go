package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abakus-kids/academy/internal/cache"
	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
)

func TestMemoryCacheTTL(t *testing.T) {
	c := cache.NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "forever", []byte("a"), 0)
	_ = c.Set(ctx, "brief", []byte("b"), 20*time.Millisecond)

	if v, ok, _ := c.Get(ctx, "brief"); !ok || string(v) != "b" {
		t.Fatalf("brief = %q %v", v, ok)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "brief"); ok {
		t.Fatal("entry outlived its ttl")
	}
	if _, ok, _ := c.Get(ctx, "forever"); !ok {
		t.Fatal("zero ttl entry expired")
	}
	_ = c.Delete(ctx, "forever")
	if _, ok, _ := c.Get(ctx, "forever"); ok {
		t.Fatal("deleted entry still present")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := cache.NewMemory()
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"abacus", "mental"}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := cache.GetOrLoad(ctx, c, "k", time.Minute, load)
		if err != nil || len(v) != 2 {
			t.Fatalf("get = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	_, err := cache.GetOrLoad(ctx, c, "other", time.Minute, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "other"); ok {
		t.Fatal("failed load was cached")
	}
}

type countingStore struct {
	quiz.Store
	gets int
}

func (s *countingStore) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	s.gets++
	return s.Store.GetQuiz(ctx, id)
}

func TestQuizStoreInvalidation(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	inner := &countingStore{Store: quiz.NewInMemoryStore()}
	st := cache.NewQuizStore(inner, c, time.Minute)

	q := quiz.Quiz{ID: "q1", Title: "First", ProgramID: "p1", Type: quiz.TypeStandard, IsActive: true}
	if err := st.PutQuiz(ctx, q, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	for i := 0; i < 2; i++ {
		got, err := st.GetQuiz(ctx, "q1")
		if err != nil || got.Title != "First" {
			t.Fatalf("get = %+v, %v", got, err)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("underlying gets = %d, want 1", inner.gets)
	}

	q.Title = "Second"
	_ = st.PutQuiz(ctx, q, nil)
	if got, _ := st.GetQuiz(ctx, "q1"); got.Title != "Second" {
		t.Fatalf("stale title %q after put", got.Title)
	}

	if _, err := st.GetQuiz(ctx, "missing"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	_ = c.Set(ctx, cache.ProgramsKey, []byte("[]"), 0)
	inv := cache.NewInvalidator(c, logger.NewNop())
	if err := inv.OnEvent(ctx, quiz.Event{Type: quiz.EventQuizUpdated, QuizID: "q1"}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, cache.ProgramsKey); ok {
		t.Fatal("program listing survived quiz update")
	}
	if _, ok, _ := c.Get(ctx, cache.QuizKey("q1")); ok {
		t.Fatal("quiz entry survived quiz update")
	}
}
