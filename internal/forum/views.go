package forum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ViewTracker decides whether a question view counts toward its view
// total. Keys identify requester and question.
type ViewTracker interface {
	ShouldCount(ctx context.Context, key string) (bool, error)
}

// ViewKey builds the de-duplication key for one requester and question.
func ViewKey(clientIP string, userID uint, questionID uint) string {
	return fmt.Sprintf("%s_%d_%d", clientIP, userID, questionID)
}

// MemoryViews keeps recently counted keys in a size-capped cache whose
// entries expire after the window. At the cap the oldest key is dropped;
// with a shared TTL that is also the key closest to expiring. Nothing
// survives a restart.
type MemoryViews struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func NewMemoryViews(window time.Duration, maxEntries int) *MemoryViews {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryViews{seen: expirable.NewLRU[string, struct{}](maxEntries, nil, window)}
}

func (m *MemoryViews) ShouldCount(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen.Peek(key); ok {
		return false, nil
	}
	m.seen.Add(key, struct{}{})
	return true, nil
}

// Len reports how many keys are currently tracked.
func (m *MemoryViews) Len() int {
	return m.seen.Len()
}

// RedisViews shares view de-duplication between server instances.
type RedisViews struct {
	rdb    *redis.Client
	prefix string
	window time.Duration
}

func NewRedisViews(rdb *redis.Client, prefix string, window time.Duration) *RedisViews {
	return &RedisViews{rdb: rdb, prefix: prefix, window: window}
}

// ShouldCount sets the key with NX and the window as TTL; only the first
// writer within the window counts the view. On a Redis error the view is
// counted and the error returned for logging.
func (r *RedisViews) ShouldCount(ctx context.Context, key string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.prefix+key, 1, r.window).Result()
	if err != nil {
		return true, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisViews) Close() error {
	return r.rdb.Close()
}
