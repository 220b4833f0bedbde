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
// DELETE CLASS COMMAND
// Removes a class. Its assignments keep their data and lose the class link.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteClassCommand identifies the class.
type DeleteClassCommand struct {
	ClassID string
}

// Validate validates the command.
func (c DeleteClassCommand) Validate() error {
	if c.ClassID == "" {
		return shared.NewDomainError("homework", "DeleteClass", shared.ErrEmptyValue, "class id is required")
	}
	return nil
}

// DeleteClassHandler handles DeleteClassCommand.
type DeleteClassHandler struct {
	classes   homework.ClassRepository
	publisher shared.EventPublisher
	now       timeutil.Clock
	log       *logger.Logger
}

// NewDeleteClassHandler creates a new DeleteClassHandler.
func NewDeleteClassHandler(
	classes homework.ClassRepository,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *DeleteClassHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DeleteClassHandler{
		classes:   classes,
		publisher: publisher,
		now:       now,
		log:       log.With(logger.Component("delete_class")),
	}
}

// Handle executes the command.
func (h *DeleteClassHandler) Handle(ctx context.Context, cmd DeleteClassCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	c, err := h.classes.GetByID(ctx, cmd.ClassID)
	if err != nil {
		return err
	}
	if err := h.classes.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("delete_class: %w", err)
	}
	h.log.Info("class deleted",
		logger.StudentID(c.StudentID),
		logger.String("class_id", c.ID))

	event := shared.NewClassChangedEvent(shared.EventClassDeleted, c.StudentID, c.ID, c.Name, h.now())
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish class deleted event", logger.Err(err))
	}
	return nil
}
