package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
)

func TestConfig_Options(t *testing.T) {
	opts, err := DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 10, opts.PoolSize)

	cfg := Config{URL: "redis://:pw@cache:6380/3"}
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Config{URL: "http://nope"}.Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "studytrack:progress:s1", ProgressKey("s1"))
	assert.Equal(t, "studytrack:tutor:choice:s1", TutorChoiceKey("s1"))
}

// liveCache connects to the Redis named by STUDYTRACK_TEST_REDIS_URL.
func liveCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("STUDYTRACK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STUDYTRACK_TEST_REDIS_URL not set")
	}
	c, err := NewCache(context.Background(), Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.DeleteByPattern(context.Background(), "studytrack:*")
		_ = c.Close()
	})
	return c
}

func TestCache_Validation(t *testing.T) {
	c := NewCacheWithClient(nil)
	ctx := context.Background()
	assert.ErrorIs(t, c.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))
}

func TestProgressCache_Live(t *testing.T) {
	cache := NewProgressCache(liveCache(t), time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := achievement.Progress{Completed: 5, Points: 50, Level: 1,
		Badges: achievement.EvaluateBadges(achievement.DefaultCatalog(), 0, 5)}
	require.NoError(t, cache.Set(ctx, "s1", want))

	got, ok, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, cache.Invalidate(ctx, "s1"))
	_, ok, err = cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPreferenceStore_Live(t *testing.T) {
	store := NewPreferenceStore(liveCache(t), 0)
	ctx := context.Background()

	_, ok, err := store.Recall(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	choice := tutor.Choice{Model: "gpt-4o", PersonaID: "priya", Style: "hints"}
	require.NoError(t, store.Remember(ctx, "s1", choice))

	got, ok, err := store.Recall(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, choice, got)

	ttl, err := store.cache.TTL(ctx, TutorChoiceKey("s1"))
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)
}
