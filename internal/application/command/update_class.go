package command

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE CLASS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateClassCommand carries a partial edit of a class.
type UpdateClassCommand struct {
	ClassID string
	Patch   homework.ClassPatch
}

// Validate validates the command.
func (c UpdateClassCommand) Validate() error {
	if c.ClassID == "" {
		return shared.NewDomainError("homework", "UpdateClass", shared.ErrEmptyValue, "class id is required")
	}
	if c.Patch.IsEmpty() {
		return shared.ErrEmptyPatch
	}
	return nil
}

// UpdateClassHandler handles UpdateClassCommand.
type UpdateClassHandler struct {
	classes   homework.ClassRepository
	publisher shared.EventPublisher
	now       timeutil.Clock
	log       *logger.Logger
}

// NewUpdateClassHandler creates a new UpdateClassHandler.
func NewUpdateClassHandler(
	classes homework.ClassRepository,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *UpdateClassHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateClassHandler{
		classes:   classes,
		publisher: publisher,
		now:       now,
		log:       log.With(logger.Component("update_class")),
	}
}

// Handle executes the command.
func (h *UpdateClassHandler) Handle(ctx context.Context, cmd UpdateClassCommand) (*homework.Class, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	c, err := h.classes.GetByID(ctx, cmd.ClassID)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(cmd.Patch); err != nil {
		return nil, err
	}
	if err := h.classes.Update(ctx, c); err != nil {
		if shared.IsAlreadyExists(err) || shared.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update_class: failed to save: %w", err)
	}
	h.log.Info("class updated",
		logger.StudentID(c.StudentID),
		logger.String("class_id", c.ID))

	event := shared.NewClassChangedEvent(shared.EventClassUpdated, c.StudentID, c.ID, c.Name, h.now())
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish class updated event", logger.Err(err))
	}
	return c, nil
}
