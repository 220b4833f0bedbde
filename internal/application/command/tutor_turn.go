package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TUTOR TURN COMMAND
// One student message and the tutor's reply. The prompt is built from the
// profile as currently stored, and observations in the reply are merged
// into that profile under a per-turn id.
// ══════════════════════════════════════════════════════════════════════════════

// TutorTurnCommand contains the student's message.
type TutorTurnCommand struct {
	ConversationID string
	Message        string
	Grade          string

	// TurnID makes retries of the same turn idempotent. Empty generates one.
	TurnID string
}

// Validate validates the command.
func (c TutorTurnCommand) Validate() error {
	if c.ConversationID == "" {
		return shared.NewDomainError("tutor", "Turn", shared.ErrEmptyValue, "conversation id is required")
	}
	if strings.TrimSpace(c.Message) == "" {
		return shared.ErrEmptyMessage
	}
	return nil
}

// TutorTurnResult contains the reply.
type TutorTurnResult struct {
	TurnID string
	Reply  tutor.TurnReply

	// Profile is the profile after any merge.
	Profile *profile.LearningProfile

	// ProfileUpdated is true when this turn changed the profile.
	ProfileUpdated bool

	// Replayed is true when the turn was already recorded and the stored
	// reply is returned without asking the model again.
	Replayed bool

	Messages []tutor.Message
}

// TutorTurnHandler handles TutorTurnCommand.
type TutorTurnHandler struct {
	conversations tutor.Repository
	merger        *profile.Merger
	llm           shared.Completer
	publisher     shared.EventPublisher
	now           timeutil.Clock
	log           *logger.Logger
}

// NewTutorTurnHandler creates a new TutorTurnHandler.
func NewTutorTurnHandler(
	conversations tutor.Repository,
	merger *profile.Merger,
	llm shared.Completer,
	publisher shared.EventPublisher,
	now timeutil.Clock,
	log *logger.Logger,
) *TutorTurnHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TutorTurnHandler{
		conversations: conversations,
		merger:        merger,
		llm:           llm,
		publisher:     publisher,
		now:           now,
		log:           log.With(logger.Component("tutor_turn")),
	}
}

// Handle executes the turn. A failed completion or merge stores no message.
// A turn id that is already recorded in the conversation replays the stored
// reply.
func (h *TutorTurnHandler) Handle(ctx context.Context, cmd TutorTurnCommand) (*TutorTurnResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	turnID := cmd.TurnID
	if turnID == "" {
		turnID = shared.NewID()
	}
	log := h.log.With(logger.ConversationID(cmd.ConversationID), logger.TurnID(turnID))
	log.Debug("tutor turn")

	conv, err := h.conversations.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return nil, err
	}
	if stored, ok := conv.Turn(cmd.TurnID); ok {
		return h.replay(ctx, conv, turnID, stored)
	}

	userMsg, err := tutor.NewMessage(tutor.RoleUser, cmd.Message, h.now())
	if err != nil {
		return nil, err
	}
	userMsg.TurnID = turnID
	if err := conv.Append(userMsg); err != nil {
		return nil, err
	}

	var (
		learner *profile.LearningProfile
		recent  []*tutor.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := h.merger.GetOrCreate(gctx, conv.StudentID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		learner = p
		return nil
	})
	g.Go(func() error {
		list, err := h.conversations.ListRecent(gctx, conv.StudentID, tutor.RecentConversations+1)
		if err != nil {
			return fmt.Errorf("load recent conversations: %w", err)
		}
		recent = excludeConversation(list, conv.ID, tutor.RecentConversations)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tutor_turn: %w", err)
	}

	persona := conv.Persona()
	prompt := tutor.BuildTurnPrompt(tutor.TurnInput{
		Persona: persona,
		Style:   conv.Style,
		Grade:   cmd.Grade,
		Subject: conv.Subject,
		Profile: learner,
		Recent:  recent,
		History: conv.Last(tutor.HistoryWindow),
		Message: cmd.Message,
	})

	start := time.Now()
	completion, err := h.llm.Complete(ctx, shared.CompletionRequest{
		Model:      conv.Model,
		Prompt:     prompt,
		Schema:     tutor.TurnSchema(conv.Style),
		SchemaName: tutor.TurnSchemaName,
	})
	if err != nil {
		return nil, fmt.Errorf("tutor_turn: completion failed: %w", err)
	}
	reply := tutor.ParseTurnReply(completion, conv.Style)
	log.Debug("reply generated",
		logger.Latency(time.Since(start)),
		logger.Bool("structured", reply.Structured))

	result := &TutorTurnResult{TurnID: turnID, Reply: reply, Profile: learner}
	if reply.Updates != nil {
		merged, err := h.merger.Apply(ctx, conv.StudentID, turnID, *reply.Updates, persona.Name)
		if err != nil {
			return nil, fmt.Errorf("tutor_turn: profile merge failed: %w", err)
		}
		result.Profile = merged.Profile
		result.ProfileUpdated = merged.Applied
	}

	assistantMsg, err := tutor.NewMessage(tutor.RoleAssistant, reply.Answer, h.now())
	if err != nil {
		return nil, fmt.Errorf("tutor_turn: empty reply: %w", err)
	}
	assistantMsg.TurnID = turnID
	assistantMsg.Suggestions = reply.Suggestions

	err = h.conversations.AppendMessages(ctx, conv.ID, turnID, userMsg, assistantMsg)
	if errors.Is(err, shared.ErrTurnAlreadyRecorded) {
		// A concurrent retry of this turn stored its exchange first.
		conv, err = h.conversations.GetByID(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		stored, _ := conv.Turn(turnID)
		return h.replay(ctx, conv, turnID, stored)
	}
	if err != nil {
		return nil, fmt.Errorf("tutor_turn: failed to save messages: %w", err)
	}
	if err := conv.Append(assistantMsg); err != nil {
		return nil, err
	}
	result.Messages = conv.Messages()

	log.Info("tutor turn completed",
		logger.StudentID(conv.StudentID),
		logger.Bool("structured", reply.Structured),
		logger.Bool("profile_updated", result.ProfileUpdated))

	event := shared.NewTutorTurnCompletedEvent(conv.StudentID, conv.ID, turnID, reply.Structured, h.now())
	if err := h.publisher.Publish(event); err != nil {
		log.Warn("failed to publish turn completed event", logger.Err(err))
	}
	return result, nil
}

func (h *TutorTurnHandler) replay(ctx context.Context, conv *tutor.Conversation, turnID string, stored tutor.Message) (*TutorTurnResult, error) {
	learner, err := h.merger.GetOrCreate(ctx, conv.StudentID)
	if err != nil {
		return nil, fmt.Errorf("tutor_turn: load profile: %w", err)
	}
	h.log.Debug("turn replayed", logger.ConversationID(conv.ID), logger.TurnID(turnID))
	return &TutorTurnResult{
		TurnID: turnID,
		Reply: tutor.TurnReply{
			Answer:      stored.Content,
			Suggestions: stored.Suggestions,
			Audience:    tutor.Audience(conv.Style),
		},
		Profile:  learner,
		Replayed: true,
		Messages: conv.Messages(),
	}, nil
}

func excludeConversation(list []*tutor.Conversation, id string, limit int) []*tutor.Conversation {
	out := make([]*tutor.Conversation, 0, len(list))
	for _, c := range list {
		if c.ID == id {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, c)
	}
	return out
}
