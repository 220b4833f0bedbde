package tutor

import (
	"context"
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one chat message.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// TurnID ties the student message and the reply of one turn together.
	TurnID string `json:"turn_id,omitempty"`

	// Suggestions are the follow-up prompts offered with a reply.
	Suggestions []string `json:"suggestions,omitempty"`
}

// NewMessage validates and builds a message.
func NewMessage(role Role, content string, at time.Time) (Message, error) {
	if !role.IsValid() {
		return Message{}, shared.ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, shared.ErrEmptyMessage
	}
	return Message{Role: role, Content: content, Timestamp: at}, nil
}

// Conversation is one tutoring session. Messages are append-only.
type Conversation struct {
	ID           string
	StudentID    string
	AssignmentID string
	Title        string
	Subject      string
	PersonaID    string
	Style        TeachingStyle
	Model        string
	CreatedAt    time.Time

	messages []Message
}

// NewConversation starts an empty session.
func NewConversation(studentID, title, subject, assignmentID string, cfg SessionConfig, now time.Time) *Conversation {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Homework help"
	}
	return &Conversation{
		ID:           shared.NewID(),
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Title:        title,
		Subject:      strings.TrimSpace(subject),
		PersonaID:    cfg.Persona.ID,
		Style:        cfg.Style,
		Model:        cfg.Model,
		CreatedAt:    now,
	}
}

// Restore rebuilds a conversation read from storage.
func Restore(c Conversation, messages []Message) *Conversation {
	c.messages = append([]Message(nil), messages...)
	return &c
}

// Append adds a message at the end.
func (c *Conversation) Append(m Message) error {
	if _, err := NewMessage(m.Role, m.Content, m.Timestamp); err != nil {
		return err
	}
	c.messages = append(c.messages, m)
	return nil
}

// Messages returns a copy of the message list.
func (c *Conversation) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Turn returns the stored reply of turnID and whether the turn was recorded.
func (c *Conversation) Turn(turnID string) (Message, bool) {
	if turnID == "" {
		return Message{}, false
	}
	for _, m := range c.messages {
		if m.TurnID == turnID && m.Role == RoleAssistant {
			return m, true
		}
	}
	return Message{}, false
}

// HasTurn reports whether any message belongs to turnID.
func HasTurn(msgs []Message, turnID string) bool {
	if turnID == "" {
		return false
	}
	for _, m := range msgs {
		if m.TurnID == turnID {
			return true
		}
	}
	return false
}

// Last returns up to n trailing messages.
func (c *Conversation) Last(n int) []Message {
	if n <= 0 || len(c.messages) == 0 {
		return nil
	}
	start := max(len(c.messages)-n, 0)
	return append([]Message(nil), c.messages[start:]...)
}

// Persona returns the conversation's persona record.
func (c *Conversation) Persona() Persona {
	return PersonaByID(c.PersonaID)
}

// Repository stores conversations.
type Repository interface {
	Create(ctx context.Context, c *Conversation) error

	// GetByID returns ErrConversationNotFound when missing.
	GetByID(ctx context.Context, id string) (*Conversation, error)

	// AppendMessages appends to the stored list without rewriting it, so
	// concurrent writers cannot drop each other's messages. When turnID is
	// set and already recorded it appends nothing and returns
	// ErrTurnAlreadyRecorded.
	AppendMessages(ctx context.Context, id, turnID string, msgs ...Message) error

	// ListRecent returns the newest conversations of a student, newest first.
	ListRecent(ctx context.Context, studentID string, limit int) ([]*Conversation, error)

	// Delete returns ErrConversationNotFound when missing.
	Delete(ctx context.Context, id string) error
}
