// Package jobs contains StudyTrack's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gpadva81/crystal-edu-track-now/internal/application/command"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ACHIEVEMENTS JOB
// Re-runs the achievement sync for every student with assignments. Status
// updates keep their change when the follow-up sync fails; this sweep
// persists any unlock such a failure left behind.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileAchievementsConfig contains configuration for the job.
type ReconcileAchievementsConfig struct {
	// Concurrency bounds parallel student syncs.
	Concurrency int

	// StudentTimeout bounds one student's sync.
	StudentTimeout time.Duration
}

// DefaultReconcileAchievementsConfig returns sensible defaults.
func DefaultReconcileAchievementsConfig() ReconcileAchievementsConfig {
	return ReconcileAchievementsConfig{
		Concurrency:    4,
		StudentTimeout: 30 * time.Second,
	}
}

// ReconcileStats summarizes one run.
type ReconcileStats struct {
	Students int
	Unlocked int
	Failed   int
}

// ReconcileAchievementsJob implements scheduler.Job.
type ReconcileAchievementsJob struct {
	students homework.StudentLister
	sync     *command.SyncAchievementsHandler
	config   ReconcileAchievementsConfig
	log      *logger.Logger

	last atomic.Pointer[ReconcileStats]
}

// NewReconcileAchievementsJob creates the job.
func NewReconcileAchievementsJob(
	students homework.StudentLister,
	sync *command.SyncAchievementsHandler,
	config ReconcileAchievementsConfig,
	log *logger.Logger,
) *ReconcileAchievementsJob {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileAchievementsJob{
		students: students,
		sync:     sync,
		config:   config,
		log:      log.With(logger.Component("reconcile_achievements")),
	}
}

// Name implements scheduler.Job.
func (j *ReconcileAchievementsJob) Name() string { return "reconcile_achievements" }

// Description implements scheduler.Job.
func (j *ReconcileAchievementsJob) Description() string {
	return "Persists badge unlocks missed by failed syncs"
}

// LastStats returns the stats of the last finished run, or nil.
func (j *ReconcileAchievementsJob) LastStats() *ReconcileStats {
	return j.last.Load()
}

// Run implements scheduler.Job. A student whose sync fails is logged and
// counted; the job fails only when students cannot be listed or ctx ends.
func (j *ReconcileAchievementsJob) Run(ctx context.Context) error {
	ids, err := j.students.ListStudentIDs(ctx)
	if err != nil {
		return fmt.Errorf("reconcile_achievements: failed to list students: %w", err)
	}

	var unlocked, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			sctx := gctx
			if j.config.StudentTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, j.config.StudentTimeout)
				defer cancel()
			}
			res, err := j.sync.Handle(sctx, command.SyncAchievementsCommand{StudentID: id})
			if err != nil {
				failed.Add(1)
				j.log.Warn("student sync failed", logger.StudentID(id), logger.Err(err))
				return nil
			}
			unlocked.Add(int64(len(res.Unlocked)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats := &ReconcileStats{Students: len(ids), Unlocked: int(unlocked.Load()), Failed: int(failed.Load())}
	j.last.Store(stats)
	j.log.Info("achievements reconciled",
		logger.Int("students", stats.Students),
		logger.Int("unlocked", stats.Unlocked),
		logger.Int("failed", stats.Failed))
	return nil
}
