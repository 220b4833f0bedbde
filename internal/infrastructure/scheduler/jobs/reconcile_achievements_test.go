package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/application/command"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/memory"
)

type failingLister struct{}

func (failingLister) ListStudentIDs(context.Context) ([]string, error) {
	return nil, errors.New("db down")
}

func TestReconcileAchievements_UnlocksMissedBadges(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	assignments := memory.NewHomeworkStore()
	achievements := memory.NewAchievementStore()

	students := []string{uuid.NewString(), uuid.NewString()}
	for i, id := range students {
		// The first student earns Beginner, the second does not.
		n := 5
		if i == 1 {
			n = 1
		}
		for k := 0; k < n; k++ {
			a, err := homework.NewAssignment(id, "task", homework.PriorityMedium, now.Add(-time.Hour))
			require.NoError(t, err)
			_, err = a.SetStatus(homework.StatusCompleted, now.Add(-time.Minute))
			require.NoError(t, err)
			require.NoError(t, assignments.Create(ctx, a))
		}
	}

	sync := command.NewSyncAchievementsHandler(assignments, achievements, achievement.DefaultCatalog(), nil, nil, nil)
	job := NewReconcileAchievementsJob(assignments, sync, DefaultReconcileAchievementsConfig(), nil)
	assert.Nil(t, job.LastStats())

	require.NoError(t, job.Run(ctx))
	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Students)
	assert.Equal(t, 1, stats.Unlocked)
	assert.Zero(t, stats.Failed)

	// A second sweep finds nothing new.
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, job.LastStats().Unlocked)
}

func TestReconcileAchievements_ListFailure(t *testing.T) {
	job := NewReconcileAchievementsJob(failingLister{}, nil, ReconcileAchievementsConfig{}, nil)
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}
