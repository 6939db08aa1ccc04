package forum

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewKey(t *testing.T) {
	assert.Equal(t, "10.0.0.1_0_7", ViewKey("10.0.0.1", 0, 7))
	assert.Equal(t, "10.0.0.1_3_7", ViewKey("10.0.0.1", 3, 7))
}

func TestMemoryViewsWindow(t *testing.T) {
	views := NewMemoryViews(100*time.Millisecond, 100)
	ctx := context.Background()
	key := ViewKey("127.0.0.1", 1, 1)

	ok, err := views.ShouldCount(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = views.ShouldCount(ctx, key)
	assert.False(t, ok, "repeat view inside the window")

	ok, _ = views.ShouldCount(ctx, ViewKey("127.0.0.1", 2, 1))
	assert.True(t, ok, "different user counts")

	time.Sleep(200 * time.Millisecond)
	ok, _ = views.ShouldCount(ctx, key)
	assert.True(t, ok, "view counts again after the window")
}

func TestMemoryViewsExpiredKeysCountAgain(t *testing.T) {
	views := NewMemoryViews(50*time.Millisecond, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := views.ShouldCount(ctx, fmt.Sprintf("old-%d", i))
		require.NoError(t, err)
	}
	time.Sleep(100 * time.Millisecond)

	ok, err := views.ShouldCount(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
	for i := 0; i < 3; i++ {
		ok, _ := views.ShouldCount(ctx, fmt.Sprintf("old-%d", i))
		assert.True(t, ok, "expired key old-%d", i)
	}
	assert.LessOrEqual(t, views.Len(), 3)
}

func TestMemoryViewsEvictsOldestAtCap(t *testing.T) {
	views := NewMemoryViews(time.Hour, 3)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		_, err := views.ShouldCount(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, views.Len())

	ok, _ := views.ShouldCount(ctx, "d")
	assert.False(t, ok, "newest key is still tracked")
	ok, _ = views.ShouldCount(ctx, "a")
	assert.True(t, ok, "oldest key was evicted")
}

func newRedisViews(t *testing.T, window time.Duration) (*RedisViews, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	views := NewRedisViews(rdb, "stackit:views:", window)
	t.Cleanup(func() { _ = views.Close() })
	return views, mr
}

func TestRedisViewsWindow(t *testing.T) {
	views, mr := newRedisViews(t, 5*time.Minute)
	ctx := context.Background()
	key := ViewKey("127.0.0.1", 1, 1)

	ok, err := views.ShouldCount(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("stackit:views:"+key))
	assert.Equal(t, 5*time.Minute, mr.TTL("stackit:views:"+key))

	ok, err = views.ShouldCount(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "repeat view inside the window")

	ok, err = views.ShouldCount(ctx, ViewKey("127.0.0.1", 2, 1))
	require.NoError(t, err)
	assert.True(t, ok, "different user counts")

	mr.FastForward(5*time.Minute + time.Second)
	ok, err = views.ShouldCount(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "view counts again after the window")
}

func TestRedisViewsErrorCountsTheView(t *testing.T) {
	views, mr := newRedisViews(t, time.Minute)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	ok, err := views.ShouldCount(context.Background(), ViewKey("127.0.0.1", 1, 1))
	assert.Error(t, err)
	assert.True(t, ok)
}
