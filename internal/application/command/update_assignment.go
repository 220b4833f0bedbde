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
// UPDATE ASSIGNMENT COMMAND
// Edits an assignment's details. Status has its own command.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAssignmentCommand carries a partial edit.
type UpdateAssignmentCommand struct {
	AssignmentID string
	Patch        homework.Patch
}

// Validate validates the command. Field values are checked by
// homework.Assignment.Apply.
func (c UpdateAssignmentCommand) Validate() error {
	if c.AssignmentID == "" {
		return shared.NewDomainError("homework", "Update", shared.ErrEmptyValue, "assignment id is required")
	}
	if c.Patch.IsEmpty() {
		return shared.ErrEmptyPatch
	}
	return nil
}

// UpdateAssignmentResult contains the edited assignment.
type UpdateAssignmentResult struct {
	Assignment *homework.Assignment

	// Sync is set when a completed assignment was edited, since the edit
	// moves its completion day.
	Sync *SyncAchievementsResult
}

// UpdateAssignmentHandler handles UpdateAssignmentCommand.
type UpdateAssignmentHandler struct {
	assignments homework.Repository
	classes     homework.ClassRepository
	sync        *SyncAchievementsHandler
	publisher   shared.EventPublisher
	now         timeutil.Clock
	log         *logger.Logger
}

// NewUpdateAssignmentHandler creates a new UpdateAssignmentHandler. classes
// may be nil, in which case class links are not checked.
func NewUpdateAssignmentHandler(
	assignments homework.Repository,
	classes homework.ClassRepository,
	sync *SyncAchievementsHandler,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *UpdateAssignmentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateAssignmentHandler{
		assignments: assignments,
		classes:     classes,
		sync:        sync,
		publisher:   publisher,
		now:         now,
		log:         log.With(logger.Component("update_assignment")),
	}
}

// Handle executes the command. Like the status command, the edit is saved
// before the sync runs.
func (h *UpdateAssignmentHandler) Handle(ctx context.Context, cmd UpdateAssignmentCommand) (*UpdateAssignmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a, err := h.assignments.GetByID(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, err
	}
	if err := h.checkClass(ctx, a.StudentID, cmd.Patch.ClassID); err != nil {
		return nil, err
	}

	now := h.now()
	if err := a.Apply(cmd.Patch, now); err != nil {
		return nil, err
	}
	if err := h.assignments.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update_assignment: failed to save: %w", err)
	}
	h.log.Info("assignment updated",
		logger.StudentID(a.StudentID),
		logger.AssignmentID(a.ID))

	event := shared.NewAssignmentUpdatedEvent(a.StudentID, a.ID, string(a.Status), now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish assignment updated event", logger.Err(err))
	}

	result := &UpdateAssignmentResult{Assignment: a}
	if a.IsCompleted() && h.sync != nil {
		result.Sync, err = h.sync.Handle(ctx, SyncAchievementsCommand{StudentID: a.StudentID})
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// checkClass rejects links to missing classes and to classes of other
// students. Unlinking always passes.
func (h *UpdateAssignmentHandler) checkClass(ctx context.Context, studentID string, classID *string) error {
	if h.classes == nil || classID == nil || *classID == "" {
		return nil
	}
	c, err := h.classes.GetByID(ctx, *classID)
	if err != nil {
		return err
	}
	if c.StudentID != studentID {
		return shared.ErrClassNotFound
	}
	return nil
}
