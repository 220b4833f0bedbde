package profile

import (
	"context"
	"errors"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/retry"
)

// DefaultMaxMergeAttempts bounds the compare-and-swap loop.
const DefaultMaxMergeAttempts = 8

// MergerConfig configures a Merger.
type MergerConfig struct {
	// Policy is the list de-duplication policy.
	Policy DedupPolicy

	// MaxAttempts bounds retries on version conflicts.
	MaxAttempts int

	// Now returns the current time.
	Now func() time.Time
}

// Merger applies tutor observations to the stored profile. Each Apply reads
// the latest persisted version, merges, and saves with a version check, so
// concurrent sessions for the same student never drop each other's
// contributions. A turn id is recorded with every save, making retries of
// the same turn no-ops.
type Merger struct {
	repo      Repository
	policy    DedupPolicy
	retrier   *retry.Retrier
	now       func() time.Time
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewMerger creates a Merger. publisher may be nil.
func NewMerger(repo Repository, cfg MergerConfig, publisher shared.EventPublisher, log *logger.Logger) *Merger {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxMergeAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy == "" {
		cfg.Policy = DedupNone
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Merger{
		repo:      repo,
		policy:    cfg.Policy,
		retrier:   retry.OptimisticLockRetrier(cfg.MaxAttempts, shared.IsConflict),
		now:       cfg.Now,
		publisher: publisher,
		log:       log.With(logger.Component("profile_merger")),
	}
}

// MergeResult describes the outcome of Apply.
type MergeResult struct {
	Profile *LearningProfile
	// Applied is false for empty updates and already-merged turns.
	Applied bool
}

// GetOrCreate returns the student's profile, creating the default one when
// absent. A concurrent creator winning the race is tolerated.
func (m *Merger) GetOrCreate(ctx context.Context, studentID string) (*LearningProfile, error) {
	p, err := m.repo.GetByStudent(ctx, studentID)
	if err == nil {
		return p, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	p = New(studentID, m.now())
	if err := m.repo.Create(ctx, p); err != nil {
		if shared.IsAlreadyExists(err) {
			return m.repo.GetByStudent(ctx, studentID)
		}
		return nil, err
	}
	m.log.Info("learning profile created", logger.StudentID(studentID))
	return p, nil
}

// Apply merges u, contributed by the persona named contributor, under turnID.
func (m *Merger) Apply(ctx context.Context, studentID, turnID string, u Update, contributor string) (MergeResult, error) {
	if u.IsEmpty() {
		p, err := m.GetOrCreate(ctx, studentID)
		return MergeResult{Profile: p}, err
	}

	var (
		result   MergeResult
		attempts int
	)
	err := m.retrier.Do(ctx, func(ctx context.Context) error {
		attempts++
		current, err := m.GetOrCreate(ctx, studentID)
		if err != nil {
			return retry.Permanent(err)
		}

		next := Merge(current, u, contributor, m.policy)
		next.UpdatedAt = m.now()

		err = m.repo.Save(ctx, next, current.Version, turnID)
		switch {
		case err == nil:
			result = MergeResult{Profile: next, Applied: true}
			return nil
		case errors.Is(err, shared.ErrAlreadyProcessed):
			result = MergeResult{Profile: current}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		m.log.Warn("profile merge failed",
			logger.StudentID(studentID), logger.TurnID(turnID),
			logger.Int("attempts", attempts), logger.Err(err))
		return MergeResult{}, err
	}

	if !result.Applied {
		m.log.Debug("turn already merged", logger.StudentID(studentID), logger.TurnID(turnID))
		return result, nil
	}

	m.log.Info("profile merged",
		logger.StudentID(studentID), logger.TurnID(turnID),
		logger.Persona(contributor), logger.Strings("fields", u.Fields()),
		logger.Int("attempts", attempts))

	event := shared.NewProfileMergedEvent(studentID, turnID, contributor, u.Fields(), result.Profile.Version, m.now())
	if err := m.publisher.Publish(event); err != nil {
		m.log.Warn("failed to publish profile merged event", logger.Err(err))
	}
	return result, nil
}
