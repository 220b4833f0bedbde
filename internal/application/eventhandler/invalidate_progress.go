// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS CACHE INVALIDATION
// Drops a student's cached progress card whenever one of its inputs moves:
// an assignment is created, edited, deleted, imported or changes status, a
// badge unlocks, or a reward is set.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressInputEvents are the events that change a progress card.
var ProgressInputEvents = []shared.EventType{
	shared.EventAssignmentCreated,
	shared.EventAssignmentUpdated,
	shared.EventAssignmentDeleted,
	shared.EventAssignmentStatusChanged,
	shared.EventAssignmentsImported,
	shared.EventAchievementUnlocked,
	shared.EventRewardSet,
}

// Registrar is the subscription surface the handler needs, satisfied by
// messaging.Dispatcher.
type Registrar interface {
	Register(name string, handler shared.EventHandler, types ...shared.EventType) error
}

// InvalidateProgressHandler invalidates cached progress.
type InvalidateProgressHandler struct {
	cache   achievement.ProgressCache
	timeout time.Duration
	log     *logger.Logger
}

// NewInvalidateProgressHandler creates the handler. timeout bounds each
// cache call; zero means two seconds.
func NewInvalidateProgressHandler(cache achievement.ProgressCache, timeout time.Duration, log *logger.Logger) *InvalidateProgressHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &InvalidateProgressHandler{
		cache:   cache,
		timeout: timeout,
		log:     log.With(logger.Component("invalidate_progress")),
	}
}

// Handle is a shared.EventHandler. Every progress event carries the student
// id as its aggregate id.
func (h *InvalidateProgressHandler) Handle(event shared.Event) error {
	studentID := event.AggregateID()
	if studentID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, studentID); err != nil {
		return fmt.Errorf("invalidate progress of %s: %w", studentID, err)
	}
	h.log.Debug("progress cache invalidated",
		logger.StudentID(studentID),
		logger.String("event_type", string(event.EventType())))
	return nil
}

// Register subscribes the handler to every progress input event.
func (h *InvalidateProgressHandler) Register(r Registrar) error {
	return r.Register("invalidate_progress", h.Handle, ProgressInputEvents...)
}
