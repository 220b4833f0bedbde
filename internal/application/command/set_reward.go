package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET REWARD COMMAND
// A parent attaches a real-world reward to a badge. The record is created
// locked when the badge has not been reached yet.
// ══════════════════════════════════════════════════════════════════════════════

// SetRewardCommand contains the reward text. An empty reward clears it.
type SetRewardCommand struct {
	StudentID string
	Badge     string
	Reward    string
}

// Validate validates the command.
func (c SetRewardCommand) Validate() error {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Badge) == "" {
		return shared.NewDomainError("achievement", "SetReward", shared.ErrEmptyValue, "badge name is required")
	}
	return nil
}

// SetRewardHandler handles SetRewardCommand.
type SetRewardHandler struct {
	achievements achievement.Repository
	catalog      achievement.Catalog
	publisher    shared.EventPublisher
	now          timeutil.Clock
	log          *logger.Logger
}

// NewSetRewardHandler creates a new SetRewardHandler.
func NewSetRewardHandler(
	achievements achievement.Repository,
	catalog achievement.Catalog,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *SetRewardHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SetRewardHandler{
		achievements: achievements,
		catalog:      catalog,
		publisher:    publisher,
		now:          now,
		log:          log.With(logger.Component("set_reward")),
	}
}

// Handle executes the command.
func (h *SetRewardHandler) Handle(ctx context.Context, cmd SetRewardCommand) (*achievement.Achievement, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	def, ok := h.catalog.Lookup(strings.TrimSpace(cmd.Badge))
	if !ok {
		return nil, shared.ErrUnknownBadge
	}
	reward := strings.TrimSpace(cmd.Reward)

	now := h.now()
	a, err := h.achievements.SetReward(ctx, cmd.StudentID, def.Name, reward, now)
	if err != nil {
		return nil, fmt.Errorf("set_reward: %w", err)
	}
	h.log.Info("reward set",
		logger.StudentID(cmd.StudentID),
		logger.BadgeName(def.Name))

	if err := h.publisher.Publish(shared.NewRewardSetEvent(cmd.StudentID, def.Name, reward, now)); err != nil {
		h.log.Warn("failed to publish reward set event", logger.Err(err))
	}
	return a, nil
}
