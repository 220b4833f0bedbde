package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
)

type conversationRow struct {
	meta     tutor.Conversation
	messages []tutor.Message
}

// ConversationStore implements tutor.Repository.
type ConversationStore struct {
	mu   sync.RWMutex
	rows map[string]*conversationRow
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{rows: make(map[string]*conversationRow)}
}

// Create implements tutor.Repository.
func (s *ConversationStore) Create(ctx context.Context, c *tutor.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[c.ID]; exists {
		return shared.NewDomainError("tutor", "Create", shared.ErrAlreadyExists, "conversation already exists")
	}
	s.rows[c.ID] = &conversationRow{meta: *tutor.Restore(*c, nil), messages: c.Messages()}
	return nil
}

// GetByID implements tutor.Repository.
func (s *ConversationStore) GetByID(ctx context.Context, id string) (*tutor.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrConversationNotFound
	}
	return tutor.Restore(row.meta, row.messages), nil
}

// AppendMessages implements tutor.Repository.
func (s *ConversationStore) AppendMessages(ctx context.Context, id, turnID string, msgs ...tutor.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return shared.ErrConversationNotFound
	}
	if tutor.HasTurn(row.messages, turnID) {
		return shared.ErrTurnAlreadyRecorded
	}
	row.messages = append(row.messages, msgs...)
	return nil
}

// ListRecent implements tutor.Repository.
func (s *ConversationStore) ListRecent(ctx context.Context, studentID string, limit int) ([]*tutor.Conversation, error) {
	s.mu.RLock()
	out := make([]*tutor.Conversation, 0)
	for _, row := range s.rows {
		if row.meta.StudentID == studentID {
			out = append(out, tutor.Restore(row.meta, row.messages))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *tutor.Conversation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements tutor.Repository.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return shared.ErrConversationNotFound
	}
	delete(s.rows, id)
	return nil
}
