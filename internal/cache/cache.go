package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a byte cache with per-entry TTL. Misses are (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	ProgramsKey = "academy:programs"
	quizPrefix  = "academy:quiz:"
)

func QuizKey(id string) string { return quizPrefix + id }

// GetOrLoad returns the cached JSON value for key, calling load on a miss
// and storing its result. Cache failures fall through to load.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if raw, ok, err := c.Get(ctx, key); err == nil && ok {
		var v T
		if json.Unmarshal(raw, &v) == nil {
			return v, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, key, raw, ttl)
	}
	return v, nil
}
