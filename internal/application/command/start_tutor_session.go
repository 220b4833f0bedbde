package command

import (
	"context"
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
// START TUTOR SESSION COMMAND
// Resolves the session choice (explicit fields over the remembered choice),
// generates the tutor's opening message and stores the new conversation.
// ══════════════════════════════════════════════════════════════════════════════

// StartTutorSessionCommand contains the session request. Empty choice fields
// fall back to the student's remembered choice.
type StartTutorSessionCommand struct {
	StudentID    string
	Title        string
	Subject      string
	AssignmentID string
	Grade        string
	Choice       tutor.Choice
}

// Validate validates the command.
func (c StartTutorSessionCommand) Validate() error {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	if c.Choice.Style != "" {
		if _, err := tutor.ParseStyle(c.Choice.Style); err != nil {
			return err
		}
	}
	return nil
}

// StartTutorSessionResult contains the new conversation.
type StartTutorSessionResult struct {
	Conversation *tutor.Conversation
	Config       tutor.SessionConfig
	Opening      tutor.Message
}

// StartTutorSessionHandler handles StartTutorSessionCommand.
type StartTutorSessionHandler struct {
	conversations tutor.Repository
	preferences   tutor.PreferenceStore
	merger        *profile.Merger
	llm           shared.Completer
	defaultModel  string
	publisher     shared.EventPublisher
	now           timeutil.Clock
	log           *logger.Logger
}

// StartTutorSessionDeps groups the handler's collaborators.
type StartTutorSessionDeps struct {
	Conversations tutor.Repository
	Preferences   tutor.PreferenceStore
	Merger        *profile.Merger
	LLM           shared.Completer
	DefaultModel  string
	Publisher     shared.EventPublisher
	Now           timeutil.Clock
	Logger        *logger.Logger
}

// NewStartTutorSessionHandler creates a new StartTutorSessionHandler.
func NewStartTutorSessionHandler(deps StartTutorSessionDeps) *StartTutorSessionHandler {
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &StartTutorSessionHandler{
		conversations: deps.Conversations,
		preferences:   deps.Preferences,
		merger:        deps.Merger,
		llm:           deps.LLM,
		defaultModel:  deps.DefaultModel,
		publisher:     deps.Publisher,
		now:           deps.Now,
		log:           deps.Logger.With(logger.Component("start_tutor_session")),
	}
}

// Handle executes the command. Nothing is stored when the opening message
// cannot be generated.
func (h *StartTutorSessionHandler) Handle(ctx context.Context, cmd StartTutorSessionCommand) (*StartTutorSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	h.log.Debug("starting tutor session", logger.StudentID(cmd.StudentID))

	choice := cmd.Choice
	if h.preferences != nil {
		remembered, ok, err := h.preferences.Recall(ctx, cmd.StudentID)
		if err != nil {
			h.log.Warn("failed to recall tutor choice", logger.StudentID(cmd.StudentID), logger.Err(err))
		} else if ok {
			choice = remembered.Overlay(cmd.Choice)
		}
	}
	cfg, err := choice.Resolve(h.defaultModel)
	if err != nil {
		return nil, err
	}

	var (
		learner *profile.LearningProfile
		recent  []*tutor.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := h.merger.GetOrCreate(gctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		learner = p
		return nil
	})
	g.Go(func() error {
		list, err := h.conversations.ListRecent(gctx, cmd.StudentID, tutor.RecentConversations)
		if err != nil {
			return fmt.Errorf("load recent conversations: %w", err)
		}
		recent = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("start_tutor_session: %w", err)
	}

	topic := strings.TrimSpace(cmd.Title)
	if topic == "" {
		topic = strings.TrimSpace(cmd.Subject)
	}
	prompt := tutor.BuildOpeningPrompt(tutor.OpeningInput{
		Persona: cfg.Persona,
		Style:   cfg.Style,
		Grade:   cmd.Grade,
		Topic:   topic,
		Profile: learner,
		Recent:  recent,
	})

	start := time.Now()
	completion, err := h.llm.Complete(ctx, shared.CompletionRequest{Model: cfg.Model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("start_tutor_session: failed to generate opening: %w", err)
	}
	h.log.Debug("opening generated", logger.Latency(time.Since(start)))

	now := h.now()
	opening, err := tutor.NewMessage(tutor.RoleAssistant, strings.TrimSpace(completion.Text), now)
	if err != nil {
		return nil, fmt.Errorf("start_tutor_session: empty opening: %w", err)
	}

	conv := tutor.NewConversation(cmd.StudentID, cmd.Title, cmd.Subject, cmd.AssignmentID, cfg, now)
	if err := conv.Append(opening); err != nil {
		return nil, err
	}
	if err := h.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("start_tutor_session: failed to save conversation: %w", err)
	}

	if h.preferences != nil {
		if err := h.preferences.Remember(ctx, cmd.StudentID, tutor.ChoiceOf(cfg)); err != nil {
			h.log.Warn("failed to remember tutor choice", logger.StudentID(cmd.StudentID), logger.Err(err))
		}
	}

	h.log.Info("tutor session started",
		logger.StudentID(cmd.StudentID),
		logger.ConversationID(conv.ID),
		logger.Persona(cfg.Persona.ID),
		logger.String("style", cfg.Style.Key()),
		logger.String("model", cfg.Model))

	event := shared.NewTutorSessionStartedEvent(cmd.StudentID, conv.ID, cfg.Persona.ID, cfg.Style.Key(), cfg.Model, now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish session started event", logger.Err(err))
	}

	return &StartTutorSessionResult{Conversation: conv, Config: cfg, Opening: opening}, nil
}
