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
// CREATE CLASS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateClassCommand contains the new class's fields.
type CreateClassCommand struct {
	StudentID    string
	Name         string
	Subject      string
	TeacherName  string
	TeacherEmail string

	// Color defaults to blue.
	Color string
}

// Validate validates the command.
func (c CreateClassCommand) Validate() error {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return shared.ErrEmptyClassName
	}
	return nil
}

// CreateClassHandler handles CreateClassCommand.
type CreateClassHandler struct {
	classes   homework.ClassRepository
	publisher shared.EventPublisher
	now       timeutil.Clock
	log       *logger.Logger
}

// NewCreateClassHandler creates a new CreateClassHandler.
func NewCreateClassHandler(
	classes homework.ClassRepository,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *CreateClassHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreateClassHandler{
		classes:   classes,
		publisher: publisher,
		now:       now,
		log:       log.With(logger.Component("create_class")),
	}
}

// Handle executes the command. A name already used by another class of the
// student, ignoring case, returns ErrClassNameTaken.
func (h *CreateClassHandler) Handle(ctx context.Context, cmd CreateClassCommand) (*homework.Class, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now()
	c, err := homework.NewClass(cmd.StudentID, cmd.Name, now)
	if err != nil {
		return nil, err
	}
	patch := homework.ClassPatch{
		Subject:      &cmd.Subject,
		TeacherName:  &cmd.TeacherName,
		TeacherEmail: &cmd.TeacherEmail,
	}
	if cmd.Color != "" {
		patch.Color = &cmd.Color
	}
	if err := c.Apply(patch); err != nil {
		return nil, err
	}

	if err := h.classes.Create(ctx, c); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create_class: failed to save: %w", err)
	}
	h.log.Info("class created",
		logger.StudentID(c.StudentID),
		logger.String("class_id", c.ID))

	event := shared.NewClassChangedEvent(shared.EventClassCreated, c.StudentID, c.ID, c.Name, now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish class created event", logger.Err(err))
	}
	return c, nil
}
