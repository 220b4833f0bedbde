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
// DELETE ASSIGNMENT COMMAND
// Removes an assignment. Badges it helped unlock stay unlocked.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteAssignmentCommand identifies the assignment.
type DeleteAssignmentCommand struct {
	AssignmentID string
}

// Validate validates the command.
func (c DeleteAssignmentCommand) Validate() error {
	if c.AssignmentID == "" {
		return shared.NewDomainError("homework", "Delete", shared.ErrEmptyValue, "assignment id is required")
	}
	return nil
}

// DeleteAssignmentHandler handles DeleteAssignmentCommand.
type DeleteAssignmentHandler struct {
	assignments homework.Repository
	publisher   shared.EventPublisher
	now         timeutil.Clock
	log         *logger.Logger
}

// NewDeleteAssignmentHandler creates a new DeleteAssignmentHandler.
func NewDeleteAssignmentHandler(
	assignments homework.Repository,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *DeleteAssignmentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DeleteAssignmentHandler{
		assignments: assignments,
		publisher:   publisher,
		now:         now,
		log:         log.With(logger.Component("delete_assignment")),
	}
}

// Handle executes the command.
func (h *DeleteAssignmentHandler) Handle(ctx context.Context, cmd DeleteAssignmentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	a, err := h.assignments.GetByID(ctx, cmd.AssignmentID)
	if err != nil {
		return err
	}
	if err := h.assignments.Delete(ctx, a.ID); err != nil {
		return fmt.Errorf("delete_assignment: %w", err)
	}
	h.log.Info("assignment deleted",
		logger.StudentID(a.StudentID),
		logger.AssignmentID(a.ID))

	event := shared.NewAssignmentDeletedEvent(a.StudentID, a.ID, string(a.Status), h.now())
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish assignment deleted event", logger.Err(err))
	}
	return nil
}
