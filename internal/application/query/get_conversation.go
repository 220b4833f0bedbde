package query

import (
	"context"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSATION QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ConversationDTO is a tutoring session with its messages.
type ConversationDTO struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	AssignmentID string          `json:"assignment_id,omitempty"`
	Title        string          `json:"title"`
	Subject      string          `json:"subject,omitempty"`
	PersonaID    string          `json:"persona_id"`
	PersonaName  string          `json:"persona_name"`
	Style        string          `json:"style"`
	Model        string          `json:"model"`
	CreatedAt    time.Time       `json:"created_at"`
	Messages     []tutor.Message `json:"messages,omitempty"`
	MessageCount int             `json:"message_count"`
}

// ToConversationDTO converts a conversation. Messages are included when
// withMessages is set.
func ToConversationDTO(c *tutor.Conversation, withMessages bool) ConversationDTO {
	dto := ConversationDTO{
		ID:           c.ID,
		StudentID:    c.StudentID,
		AssignmentID: c.AssignmentID,
		Title:        c.Title,
		Subject:      c.Subject,
		PersonaID:    c.PersonaID,
		PersonaName:  c.Persona().Name,
		Model:        c.Model,
		CreatedAt:    c.CreatedAt,
		MessageCount: c.Len(),
	}
	if c.Style != nil {
		dto.Style = c.Style.Key()
	}
	if withMessages {
		dto.Messages = c.Messages()
	}
	return dto
}

// GetConversationHandler returns one conversation with its messages.
type GetConversationHandler struct {
	conversations tutor.Repository
}

// NewGetConversationHandler creates a new GetConversationHandler.
func NewGetConversationHandler(conversations tutor.Repository) *GetConversationHandler {
	return &GetConversationHandler{conversations: conversations}
}

// Handle executes the query.
func (h *GetConversationHandler) Handle(ctx context.Context, id string) (*ConversationDTO, error) {
	if id == "" {
		return nil, shared.ErrConversationNotFound
	}
	c, err := h.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToConversationDTO(c, true)
	return &dto, nil
}

// ListConversationsHandler lists a student's recent sessions, newest first.
type ListConversationsHandler struct {
	conversations tutor.Repository
}

// NewListConversationsHandler creates a new ListConversationsHandler.
func NewListConversationsHandler(conversations tutor.Repository) *ListConversationsHandler {
	return &ListConversationsHandler{conversations: conversations}
}

// Handle executes the query.
func (h *ListConversationsHandler) Handle(ctx context.Context, studentID string, limit int) ([]ConversationDTO, error) {
	if _, err := shared.NewStudentID(studentID); err != nil {
		return nil, err
	}
	list, err := h.conversations.ListRecent(ctx, studentID, shared.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]ConversationDTO, 0, len(list))
	for _, c := range list {
		out = append(out, ToConversationDTO(c, false))
	}
	return out, nil
}
