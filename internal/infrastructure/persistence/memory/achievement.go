package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

type achievementKey struct {
	studentID string
	name      string
}

// AchievementStore implements achievement.Repository.
type AchievementStore struct {
	mu    sync.Mutex
	items map[achievementKey]achievement.Achievement
	order []achievementKey
}

// NewAchievementStore creates an empty store.
func NewAchievementStore() *AchievementStore {
	return &AchievementStore{items: make(map[achievementKey]achievement.Achievement)}
}

func copyAchievement(a achievement.Achievement) achievement.Achievement {
	if a.UnlockedAt != nil {
		t := *a.UnlockedAt
		a.UnlockedAt = &t
	}
	return a
}

// ListByStudent implements achievement.Repository.
func (s *AchievementStore) ListByStudent(ctx context.Context, studentID string) ([]achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]achievement.Achievement, 0)
	for _, k := range s.order {
		if k.studentID == studentID {
			out = append(out, copyAchievement(s.items[k]))
		}
	}
	return out, nil
}

// Unlock implements achievement.Repository.
func (s *AchievementStore) Unlock(ctx context.Context, studentID, name string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := achievementKey{studentID, name}
	a, ok := s.items[k]
	if ok && a.Unlocked {
		return false, nil
	}
	if !ok {
		a = achievement.Achievement{ID: shared.NewID(), StudentID: studentID, Name: name, CreatedAt: at}
		s.order = append(s.order, k)
	}
	a.Unlocked = true
	a.UnlockedAt = &at
	s.items[k] = a
	return true, nil
}

// SetReward implements achievement.Repository.
func (s *AchievementStore) SetReward(ctx context.Context, studentID, name, reward string, now time.Time) (*achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := achievementKey{studentID, name}
	a, ok := s.items[k]
	if !ok {
		a = *achievement.NewLocked(studentID, name, "", now)
		s.order = append(s.order, k)
	}
	a.Reward = reward
	s.items[k] = a

	out := copyAchievement(a)
	return &out, nil
}
