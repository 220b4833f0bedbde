package redis

import (
	"context"
	"errors"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
)

// ProgressCache implements achievement.ProgressCache on top of Cache.
type ProgressCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewProgressCache creates a ProgressCache. A non-positive ttl uses
// TTLProgress.
func NewProgressCache(cache *Cache, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = TTLProgress
	}
	return &ProgressCache{cache: cache, ttl: ttl}
}

// Get implements achievement.ProgressCache.
func (c *ProgressCache) Get(ctx context.Context, studentID string) (achievement.Progress, bool, error) {
	var p achievement.Progress
	err := c.cache.Get(ctx, ProgressKey(studentID), &p)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, ErrCacheMiss):
		return achievement.Progress{}, false, nil
	default:
		return achievement.Progress{}, false, err
	}
}

// Set implements achievement.ProgressCache.
func (c *ProgressCache) Set(ctx context.Context, studentID string, p achievement.Progress) error {
	return c.cache.Set(ctx, ProgressKey(studentID), p, c.ttl)
}

// Invalidate implements achievement.ProgressCache.
func (c *ProgressCache) Invalidate(ctx context.Context, studentID string) error {
	return c.cache.Delete(ctx, ProgressKey(studentID))
}
