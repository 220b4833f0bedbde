package memory

import (
	"context"
	"sync"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
)

// PreferenceStore implements tutor.PreferenceStore.
type PreferenceStore struct {
	mu      sync.RWMutex
	choices map[string]tutor.Choice
}

// NewPreferenceStore creates an empty store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{choices: make(map[string]tutor.Choice)}
}

// Remember implements tutor.PreferenceStore.
func (s *PreferenceStore) Remember(ctx context.Context, studentID string, c tutor.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices[studentID] = c
	return nil
}

// Recall implements tutor.PreferenceStore.
func (s *PreferenceStore) Recall(ctx context.Context, studentID string) (tutor.Choice, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.choices[studentID]
	return c, ok, nil
}
