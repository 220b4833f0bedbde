package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
)

// ConversationRepository implements tutor.Repository for PostgreSQL.
type ConversationRepository struct {
	conn *Connection
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(conn *Connection) *ConversationRepository {
	return &ConversationRepository{conn: conn}
}

const conversationColumns = `id, student_id, assignment_id, title, subject, persona_id, style, model, messages, created_at`

// Create implements tutor.Repository.
func (r *ConversationRepository) Create(ctx context.Context, c *tutor.Conversation) error {
	msgs, err := json.Marshal(nonNilMessages(c.Messages()))
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	style := tutor.DefaultStyle.Key()
	if c.Style != nil {
		style = c.Style.Key()
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO tutor_conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		c.ID,
		c.StudentID,
		nullIfEmpty(c.AssignmentID),
		c.Title,
		c.Subject,
		c.PersonaID,
		style,
		c.Model,
		msgs,
		c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("tutor", "Create", shared.ErrAlreadyExists, "conversation already exists")
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID implements tutor.Repository.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*tutor.Conversation, error) {
	c, err := scanConversation(r.conn.QueryRow(ctx, `SELECT `+conversationColumns+` FROM tutor_conversations WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return c, nil
}

// AppendMessages implements tutor.Repository. The array is extended in place
// with ||, never read back and rewritten. A recorded turn is detected by
// JSONB containment in the same statement.
func (r *ConversationRepository) AppendMessages(ctx context.Context, id, turnID string, msgs ...tutor.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	if turnID == "" {
		result, err := r.conn.Exec(ctx, `
			UPDATE tutor_conversations SET messages = messages || $1::jsonb WHERE id = $2
		`, payload, id)
		if err != nil {
			return fmt.Errorf("failed to append messages: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrConversationNotFound
		}
		return nil
	}

	marker, err := json.Marshal([]map[string]string{{"turn_id": turnID}})
	if err != nil {
		return fmt.Errorf("failed to marshal turn marker: %w", err)
	}
	result, err := r.conn.Exec(ctx, `
		UPDATE tutor_conversations SET messages = messages || $1::jsonb
		WHERE id = $2 AND NOT (messages @> $3::jsonb)
	`, payload, id, marker)
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tutor_conversations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if !exists {
		return shared.ErrConversationNotFound
	}
	return shared.ErrTurnAlreadyRecorded
}

// ListRecent implements tutor.Repository.
func (r *ConversationRepository) ListRecent(ctx context.Context, studentID string, limit int) ([]*tutor.Conversation, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM tutor_conversations
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, studentID, shared.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []*tutor.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete implements tutor.Repository.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM tutor_conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrConversationNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (*tutor.Conversation, error) {
	var (
		c            tutor.Conversation
		assignmentID *string
		style        string
		raw          []byte
	)
	err := row.Scan(
		&c.ID,
		&c.StudentID,
		&assignmentID,
		&c.Title,
		&c.Subject,
		&c.PersonaID,
		&style,
		&c.Model,
		&raw,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignmentID != nil {
		c.AssignmentID = *assignmentID
	}

	c.Style, err = tutor.ParseStyle(style)
	if err != nil {
		c.Style = tutor.DefaultStyle
	}

	var msgs []tutor.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return tutor.Restore(c, msgs), nil
}

func nonNilMessages(msgs []tutor.Message) []tutor.Message {
	if msgs == nil {
		return []tutor.Message{}
	}
	return msgs
}
