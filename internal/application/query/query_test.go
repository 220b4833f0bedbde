package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/application/query"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/memory"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

var (
	ctx = context.Background()
	now = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (achievement.Progress, bool, error) {
	return achievement.Progress{}, false, errors.New("redis down")
}
func (brokenCache) Set(context.Context, string, achievement.Progress) error {
	return errors.New("redis down")
}
func (brokenCache) Invalidate(context.Context, string) error { return nil }

func seed(t *testing.T, repo *memory.HomeworkStore, studentID string, completed, todo int) {
	t.Helper()
	for i := 0; i < completed+todo; i++ {
		a, err := homework.NewAssignment(studentID, "task", homework.PriorityMedium, now.Add(-48*time.Hour))
		require.NoError(t, err)
		if i < completed {
			_, err = a.SetStatus(homework.StatusCompleted, now.Add(-time.Hour))
			require.NoError(t, err)
		}
		require.NoError(t, repo.Create(ctx, a))
	}
}

func TestGetProgress_ComputesAndCaches(t *testing.T) {
	studentID := uuid.NewString()
	assignments := memory.NewHomeworkStore()
	achievements := memory.NewAchievementStore()
	cache := memory.NewProgressCache()
	seed(t, assignments, studentID, 6, 2)

	_, err := achievements.SetReward(ctx, studentID, "Beginner", "movie night", now)
	require.NoError(t, err)
	_, err = achievements.Unlock(ctx, studentID, "Beginner", now.Add(-time.Hour))
	require.NoError(t, err)

	h := query.NewGetProgressHandler(assignments, achievements, achievement.DefaultCatalog(), cache, timeutil.Fixed(now), nil)
	dto, err := h.Handle(ctx, query.GetProgressQuery{StudentID: studentID})
	require.NoError(t, err)

	assert.False(t, dto.Cached)
	assert.Equal(t, 6, dto.Completed)
	assert.Equal(t, 60, dto.Points)
	assert.Equal(t, 1, dto.Level)
	assert.Equal(t, 40, dto.PointsToNextLevel)
	assert.Equal(t, 1, dto.Streak)
	assert.Equal(t, 6, dto.CompletedToday)
	require.Len(t, dto.Badges, 4)

	beginner := dto.Badges[0]
	assert.Equal(t, "Beginner", beginner.Name)
	assert.True(t, beginner.Unlocked)
	assert.Equal(t, "movie night", beginner.Reward)
	require.NotNil(t, beginner.UnlockedAt)

	dedicated := dto.Badges[1]
	assert.False(t, dedicated.Unlocked)
	assert.Equal(t, 6, dedicated.Progress)
	assert.Equal(t, 20, dedicated.Threshold)

	// A second read is served from the cache until invalidated.
	seed(t, assignments, studentID, 1, 0)
	dto, err = h.Handle(ctx, query.GetProgressQuery{StudentID: studentID})
	require.NoError(t, err)
	assert.True(t, dto.Cached)
	assert.Equal(t, 6, dto.Completed)

	dto, err = h.Handle(ctx, query.GetProgressQuery{StudentID: studentID, SkipCache: true})
	require.NoError(t, err)
	assert.False(t, dto.Cached)
	assert.Equal(t, 7, dto.Completed)
}

func TestGetProgress_CacheFailuresAreBypassed(t *testing.T) {
	studentID := uuid.NewString()
	assignments := memory.NewHomeworkStore()
	seed(t, assignments, studentID, 2, 0)

	h := query.NewGetProgressHandler(assignments, memory.NewAchievementStore(), achievement.DefaultCatalog(), brokenCache{}, timeutil.Fixed(now), nil)
	dto, err := h.Handle(ctx, query.GetProgressQuery{StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.Completed)

	_, err = h.Handle(ctx, query.GetProgressQuery{StudentID: "nope"})
	assert.True(t, shared.IsValidation(err))
}

func TestListAssignments(t *testing.T) {
	studentID := uuid.NewString()
	assignments := memory.NewHomeworkStore()
	seed(t, assignments, studentID, 2, 3)

	overdue := now.Add(-24 * time.Hour)
	late, err := homework.NewAssignment(studentID, "Late essay", homework.PriorityHigh, now)
	require.NoError(t, err)
	late.DueDate = &overdue
	require.NoError(t, assignments.Create(ctx, late))

	h := query.NewListAssignmentsHandler(assignments, timeutil.Fixed(now))

	all, err := h.Handle(ctx, query.ListAssignmentsQuery{StudentID: studentID})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	done, err := h.Handle(ctx, query.ListAssignmentsQuery{StudentID: studentID, Status: "completed"})
	require.NoError(t, err)
	assert.Len(t, done, 2)

	high, err := h.Handle(ctx, query.ListAssignmentsQuery{StudentID: studentID, Priority: "high"})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.True(t, high[0].Overdue)

	_, err = h.Handle(ctx, query.ListAssignmentsQuery{StudentID: studentID, Sort: "-color"})
	assert.ErrorIs(t, err, shared.ErrInvalidSortField)

	_, err = h.Handle(ctx, query.ListAssignmentsQuery{StudentID: studentID, Status: "done"})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestGetProfile_CreatesStartingProfile(t *testing.T) {
	studentID := uuid.NewString()
	merger := profile.NewMerger(memory.NewProfileStore(), profile.MergerConfig{Now: timeutil.Fixed(now)}, nil, nil)
	h := query.NewGetProfileHandler(merger)

	p, err := h.Handle(ctx, query.GetProfileQuery{StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, profile.DefaultHandoffNotes, p.TutorHandoffNotes)

	again, err := h.Handle(ctx, query.GetProfileQuery{StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}

func TestConversationQueries(t *testing.T) {
	studentID := uuid.NewString()
	store := memory.NewConversationStore()
	cfg, err := tutor.Choice{PersonaID: "james", Style: "direct"}.Resolve("gpt-4o-mini")
	require.NoError(t, err)

	c := tutor.NewConversation(studentID, "", "History", "", cfg, now)
	msg, err := tutor.NewMessage(tutor.RoleAssistant, "Let's begin.", now)
	require.NoError(t, err)
	require.NoError(t, c.Append(msg))
	require.NoError(t, store.Create(ctx, c))

	got, err := query.NewGetConversationHandler(store).Handle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Homework help", got.Title)
	assert.Equal(t, "James Wilson", got.PersonaName)
	assert.Equal(t, "direct", got.Style)
	assert.Len(t, got.Messages, 1)

	list, err := query.NewListConversationsHandler(store).Handle(ctx, studentID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Messages)
	assert.Equal(t, 1, list[0].MessageCount)

	_, err = query.NewGetConversationHandler(store).Handle(ctx, uuid.NewString())
	assert.True(t, shared.IsNotFound(err))
}
