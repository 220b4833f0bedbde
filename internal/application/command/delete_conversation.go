package command

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE CONVERSATION COMMAND
// Removes a tutoring conversation and its messages. Observations already
// merged into the learning profile stay there.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteConversationCommand identifies the conversation.
type DeleteConversationCommand struct {
	ConversationID string
}

// Validate validates the command.
func (c DeleteConversationCommand) Validate() error {
	if c.ConversationID == "" {
		return shared.NewDomainError("tutor", "Delete", shared.ErrEmptyValue, "conversation id is required")
	}
	return nil
}

// DeleteConversationHandler handles DeleteConversationCommand.
type DeleteConversationHandler struct {
	conversations tutor.Repository
	publisher     shared.EventPublisher
	now           timeutil.Clock
	log           *logger.Logger
}

// NewDeleteConversationHandler creates a new DeleteConversationHandler.
func NewDeleteConversationHandler(
	conversations tutor.Repository,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *DeleteConversationHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DeleteConversationHandler{
		conversations: conversations,
		publisher:     publisher,
		now:           now,
		log:           log.With(logger.Component("delete_conversation")),
	}
}

// Handle executes the command.
func (h *DeleteConversationHandler) Handle(ctx context.Context, cmd DeleteConversationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	conv, err := h.conversations.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return err
	}
	if err := h.conversations.Delete(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete_conversation: %w", err)
	}
	h.log.Info("conversation deleted",
		logger.StudentID(conv.StudentID),
		logger.ConversationID(conv.ID))

	event := shared.NewTutorSessionDeletedEvent(conv.StudentID, conv.ID, h.now())
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish conversation deleted event", logger.Err(err))
	}
	return nil
}
