package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ASSIGNMENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateAssignmentCommand contains the new assignment's fields.
type CreateAssignmentCommand struct {
	StudentID   string
	ClassID     string
	Title       string
	Subject     string
	Description string
	DueDate     *time.Time

	// Status defaults to todo.
	Status string

	// Priority defaults to medium. Unknown values are rejected.
	Priority string
}

// Validate validates the command.
func (c CreateAssignmentCommand) Validate() error {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Title) == "" {
		return shared.ErrEmptyTitle
	}
	if c.Status != "" {
		if _, err := homework.ParseStatus(c.Status); err != nil {
			return err
		}
	}
	if c.Priority != "" && !homework.Priority(c.Priority).IsValid() {
		return shared.ErrInvalidPriority
	}
	return nil
}

// CreateAssignmentResult contains the stored assignment.
type CreateAssignmentResult struct {
	Assignment *homework.Assignment

	// Sync is set when the assignment was created already completed.
	Sync *SyncAchievementsResult
}

// CreateAssignmentHandler handles CreateAssignmentCommand.
type CreateAssignmentHandler struct {
	assignments homework.Repository
	sync        *SyncAchievementsHandler
	publisher   shared.EventPublisher
	now         timeutil.Clock
	log         *logger.Logger
}

// NewCreateAssignmentHandler creates a new CreateAssignmentHandler.
func NewCreateAssignmentHandler(
	assignments homework.Repository,
	sync *SyncAchievementsHandler,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *CreateAssignmentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreateAssignmentHandler{
		assignments: assignments,
		sync:        sync,
		publisher:   publisher,
		now:         now,
		log:         log.With(logger.Component("create_assignment")),
	}
}

// Handle executes the command.
func (h *CreateAssignmentHandler) Handle(ctx context.Context, cmd CreateAssignmentCommand) (*CreateAssignmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	h.log.Debug("creating assignment", logger.StudentID(cmd.StudentID))

	now := h.now()
	a, err := homework.NewAssignment(cmd.StudentID, cmd.Title, homework.Priority(cmd.Priority), now)
	if err != nil {
		return nil, err
	}
	a.ClassID = cmd.ClassID
	a.Subject = strings.TrimSpace(cmd.Subject)
	a.Description = cmd.Description
	a.DueDate = cmd.DueDate
	a.Source = "manual"
	if cmd.Status != "" {
		status, _ := homework.ParseStatus(cmd.Status)
		if _, err := a.SetStatus(status, now); err != nil {
			return nil, err
		}
	}

	if err := h.assignments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create_assignment: failed to save: %w", err)
	}
	h.log.Info("assignment created",
		logger.StudentID(a.StudentID),
		logger.AssignmentID(a.ID))

	event := shared.NewAssignmentCreatedEvent(a.StudentID, a.ID, string(a.Status), now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish assignment created event", logger.Err(err))
	}

	result := &CreateAssignmentResult{Assignment: a}
	if a.IsCompleted() && h.sync != nil {
		result.Sync, err = h.sync.Handle(ctx, SyncAchievementsCommand{StudentID: a.StudentID})
		if err != nil {
			return result, err
		}
	}
	return result, nil
}
