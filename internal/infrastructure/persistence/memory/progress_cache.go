package memory

import (
	"context"
	"sync"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
)

// ProgressCache implements achievement.ProgressCache. Entries live until
// invalidated.
type ProgressCache struct {
	mu      sync.RWMutex
	entries map[string]achievement.Progress
}

// NewProgressCache creates an empty cache.
func NewProgressCache() *ProgressCache {
	return &ProgressCache{entries: make(map[string]achievement.Progress)}
}

// Get implements achievement.ProgressCache.
func (c *ProgressCache) Get(ctx context.Context, studentID string) (achievement.Progress, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[studentID]
	return p, ok, nil
}

// Set implements achievement.ProgressCache.
func (c *ProgressCache) Set(ctx context.Context, studentID string, p achievement.Progress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Badges = append([]achievement.BadgeState(nil), p.Badges...)
	c.entries[studentID] = p
	return nil
}

// Invalidate implements achievement.ProgressCache.
func (c *ProgressCache) Invalidate(ctx context.Context, studentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, studentID)
	return nil
}
