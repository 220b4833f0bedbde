// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// The progress card of a student: points, level, streak, weekly counts and
// every badge with its reward. Snapshots are cached per student and dropped
// by the cache invalidation handler whenever their inputs change.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery identifies the student.
type GetProgressQuery struct {
	StudentID string

	// SkipCache forces a recomputation.
	SkipCache bool
}

// Validate validates the query.
func (q GetProgressQuery) Validate() error {
	_, err := shared.NewStudentID(q.StudentID)
	return err
}

// ProgressDTO is the progress card.
type ProgressDTO struct {
	StudentID string `json:"student_id"`

	// ─────────────────────────────────────────────────────────────────────────
	// Counters
	// ─────────────────────────────────────────────────────────────────────────

	Completed         int `json:"completed"`
	Points            int `json:"points"`
	Level             int `json:"level"`
	Streak            int `json:"streak"`
	CompletedToday    int `json:"completed_today"`
	CompletedThisWeek int `json:"completed_this_week"`

	// PointsToNextLevel is how many points the next level needs.
	PointsToNextLevel int `json:"points_to_next_level"`

	// ─────────────────────────────────────────────────────────────────────────
	// Badges
	// ─────────────────────────────────────────────────────────────────────────

	Badges []BadgeDTO `json:"badges"`

	// Cached is true when the snapshot came from the cache.
	Cached bool `json:"cached"`
}

// BadgeDTO is one badge of the card.
type BadgeDTO struct {
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	Threshold   int        `json:"threshold"`
	Progress    int        `json:"progress"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	Reward      string     `json:"reward,omitempty"`
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	assignments  homework.Repository
	achievements achievement.Repository
	catalog      achievement.Catalog
	cache        achievement.ProgressCache
	now          timeutil.Clock
	log          *logger.Logger
}

// NewGetProgressHandler creates a new GetProgressHandler. cache may be nil.
func NewGetProgressHandler(
	assignments homework.Repository,
	achievements achievement.Repository,
	catalog achievement.Catalog,
	cache achievement.ProgressCache,
	now timeutil.Clock,
	log *logger.Logger,
) *GetProgressHandler {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetProgressHandler{
		assignments:  assignments,
		achievements: achievements,
		catalog:      catalog,
		cache:        cache,
		now:          now,
		log:          log.With(logger.Component("get_progress")),
	}
}

// Handle executes the query. Cache failures are logged and bypassed.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil && !q.SkipCache {
		p, ok, err := h.cache.Get(ctx, q.StudentID)
		switch {
		case err != nil:
			h.log.Warn("progress cache read failed", logger.StudentID(q.StudentID), logger.Err(err))
		case ok:
			dto := ToProgressDTO(q.StudentID, p)
			dto.Cached = true
			return dto, nil
		}
	}

	assignments, err := h.assignments.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to load assignments: %w", err)
	}
	records, err := h.achievements.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to load achievements: %w", err)
	}

	p := achievement.Summarize(assignments, h.catalog, h.now())
	p.Annotate(records)

	if h.cache != nil {
		if err := h.cache.Set(ctx, q.StudentID, p); err != nil {
			h.log.Warn("progress cache write failed", logger.StudentID(q.StudentID), logger.Err(err))
		}
	}
	return ToProgressDTO(q.StudentID, p), nil
}

// ToProgressDTO converts a progress snapshot into the card.
func ToProgressDTO(studentID string, p achievement.Progress) *ProgressDTO {
	dto := &ProgressDTO{
		StudentID:         studentID,
		Completed:         p.Completed,
		Points:            p.Points,
		Level:             p.Level,
		Streak:            p.Streak,
		CompletedToday:    p.CompletedToday,
		CompletedThisWeek: p.CompletedThisWeek,
		PointsToNextLevel: p.Level*100 - p.Points,
		Badges:            make([]BadgeDTO, 0, len(p.Badges)),
	}
	for _, b := range p.Badges {
		dto.Badges = append(dto.Badges, BadgeDTO{
			Name:        b.Badge.Name,
			Kind:        string(b.Badge.Kind),
			Description: b.Badge.Description,
			Threshold:   b.Badge.Threshold,
			Progress:    b.Progress,
			Unlocked:    b.Unlocked,
			UnlockedAt:  b.UnlockedAt,
			Reward:      b.Reward,
		})
	}
	return dto
}
