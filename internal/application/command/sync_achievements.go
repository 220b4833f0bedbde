// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ACHIEVEMENTS COMMAND
// Recomputes a student's progress and persists every badge unlock the
// assignment list now justifies. Unlocks are guarded in storage, so two
// sessions syncing at once persist and announce each transition once.
// ══════════════════════════════════════════════════════════════════════════════

// SyncAchievementsCommand identifies the student to reconcile.
type SyncAchievementsCommand struct {
	StudentID string
}

// Validate validates the command.
func (c SyncAchievementsCommand) Validate() error {
	if c.StudentID == "" {
		return shared.NewDomainError("achievement", "Sync", shared.ErrEmptyValue, "student id is required")
	}
	return nil
}

// SyncAchievementsResult is the outcome of a sync.
type SyncAchievementsResult struct {
	// Progress is annotated with the records as they are after the sync.
	Progress achievement.Progress

	// Unlocked lists the badges this call transitioned, in catalog order.
	Unlocked []string

	SyncedAt time.Time
}

// SyncAchievementsHandler handles SyncAchievementsCommand.
type SyncAchievementsHandler struct {
	assignments  homework.Repository
	achievements achievement.Repository
	catalog      achievement.Catalog
	publisher    shared.EventPublisher
	now          timeutil.Clock
	log          *logger.Logger
}

// NewSyncAchievementsHandler creates a new SyncAchievementsHandler.
func NewSyncAchievementsHandler(
	assignments homework.Repository,
	achievements achievement.Repository,
	catalog achievement.Catalog,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *SyncAchievementsHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SyncAchievementsHandler{
		assignments:  assignments,
		achievements: achievements,
		catalog:      catalog,
		publisher:    publisher,
		now:          now,
		log:          log.With(logger.Component("sync_achievements")),
	}
}

// Handle executes the sync. A failed unlock aborts the sync; unlocks already
// persisted stay and a later sync skips them.
func (h *SyncAchievementsHandler) Handle(ctx context.Context, cmd SyncAchievementsCommand) (*SyncAchievementsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	h.log.Debug("syncing achievements", logger.StudentID(cmd.StudentID))

	assignments, err := h.assignments.ListByStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("sync_achievements: failed to load assignments: %w", err)
	}
	existing, err := h.achievements.ListByStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("sync_achievements: failed to load achievements: %w", err)
	}

	now := h.now()
	progress := achievement.Summarize(assignments, h.catalog, now)
	pending := achievement.Reconcile(existing, progress.Badges, now)

	rewards := make(map[string]string, len(existing))
	for _, a := range existing {
		rewards[a.Name] = a.Reward
	}

	var (
		performed []achievement.Unlock
		unlocked  []string
	)
	for _, u := range pending {
		transitioned, err := h.achievements.Unlock(ctx, cmd.StudentID, u.Name, u.At)
		if err != nil {
			return nil, fmt.Errorf("sync_achievements: failed to unlock %q: %w", u.Name, err)
		}
		if !transitioned {
			continue
		}
		performed = append(performed, u)
		unlocked = append(unlocked, u.Name)

		h.log.Info("achievement unlocked",
			logger.StudentID(cmd.StudentID),
			logger.BadgeName(u.Name))

		event := shared.NewAchievementUnlockedEvent(cmd.StudentID, u.Name, rewards[u.Name], now)
		if err := h.publisher.Publish(event); err != nil {
			h.log.Warn("failed to publish achievement unlocked event", logger.Err(err))
		}
	}

	progress.Annotate(achievement.Apply(cmd.StudentID, existing, performed))

	return &SyncAchievementsResult{
		Progress: progress,
		Unlocked: unlocked,
		SyncedAt: now,
	}, nil
}
