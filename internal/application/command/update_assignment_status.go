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
// UPDATE ASSIGNMENT STATUS COMMAND
// Moves an assignment to a new status, stamps it, and re-syncs the student's
// achievements. Any status may follow any other.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAssignmentStatusCommand contains the new status.
type UpdateAssignmentStatusCommand struct {
	AssignmentID string
	Status       string
}

// Validate validates the command.
func (c UpdateAssignmentStatusCommand) Validate() error {
	if c.AssignmentID == "" {
		return shared.NewDomainError("homework", "UpdateStatus", shared.ErrEmptyValue, "assignment id is required")
	}
	_, err := homework.ParseStatus(c.Status)
	return err
}

// UpdateAssignmentStatusResult contains the updated assignment.
type UpdateAssignmentStatusResult struct {
	Assignment *homework.Assignment
	Previous   homework.Status

	// Sync is the achievement sync that followed the update.
	Sync *SyncAchievementsResult
}

// UpdateAssignmentStatusHandler handles UpdateAssignmentStatusCommand.
type UpdateAssignmentStatusHandler struct {
	assignments homework.Repository
	sync        *SyncAchievementsHandler
	publisher   shared.EventPublisher
	now         timeutil.Clock
	log         *logger.Logger
}

// NewUpdateAssignmentStatusHandler creates a new UpdateAssignmentStatusHandler.
func NewUpdateAssignmentStatusHandler(
	assignments homework.Repository,
	sync *SyncAchievementsHandler,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *UpdateAssignmentStatusHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateAssignmentStatusHandler{
		assignments: assignments,
		sync:        sync,
		publisher:   publisher,
		now:         now,
		log:         log.With(logger.Component("update_assignment_status")),
	}
}

// Handle executes the command. The status change is saved before the sync
// runs, so a failing sync leaves the new status in place and reports the
// error.
func (h *UpdateAssignmentStatusHandler) Handle(ctx context.Context, cmd UpdateAssignmentStatusCommand) (*UpdateAssignmentStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	status, _ := homework.ParseStatus(cmd.Status)
	h.log.Debug("updating assignment status",
		logger.AssignmentID(cmd.AssignmentID),
		logger.String("status", string(status)))

	a, err := h.assignments.GetByID(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	prev, err := a.SetStatus(status, now)
	if err != nil {
		return nil, err
	}
	if err := h.assignments.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update_assignment_status: failed to save: %w", err)
	}

	h.log.Info("assignment status changed",
		logger.StudentID(a.StudentID),
		logger.AssignmentID(a.ID),
		logger.String("from", string(prev)),
		logger.String("to", string(status)))

	event := shared.NewAssignmentStatusChangedEvent(a.StudentID, a.ID, string(prev), string(status), now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish status changed event", logger.Err(err))
	}

	result := &UpdateAssignmentStatusResult{Assignment: a, Previous: prev}
	result.Sync, err = h.sync.Handle(ctx, SyncAchievementsCommand{StudentID: a.StudentID})
	if err != nil {
		return result, err
	}
	return result, nil
}
