package redis

import (
	"context"
	"errors"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
)

// PreferenceStore implements tutor.PreferenceStore. Choices expire after
// the configured ttl.
type PreferenceStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewPreferenceStore creates a PreferenceStore. A non-positive ttl uses
// TTLTutorChoice.
func NewPreferenceStore(cache *Cache, ttl time.Duration) *PreferenceStore {
	if ttl <= 0 {
		ttl = TTLTutorChoice
	}
	return &PreferenceStore{cache: cache, ttl: ttl}
}

// Remember implements tutor.PreferenceStore.
func (s *PreferenceStore) Remember(ctx context.Context, studentID string, c tutor.Choice) error {
	return s.cache.Set(ctx, TutorChoiceKey(studentID), c, s.ttl)
}

// Recall implements tutor.PreferenceStore.
func (s *PreferenceStore) Recall(ctx context.Context, studentID string) (tutor.Choice, bool, error) {
	var c tutor.Choice
	err := s.cache.Get(ctx, TutorChoiceKey(studentID), &c)
	switch {
	case err == nil:
		return c, true, nil
	case errors.Is(err, ErrCacheMiss):
		return tutor.Choice{}, false, nil
	default:
		return tutor.Choice{}, false, err
	}
}
