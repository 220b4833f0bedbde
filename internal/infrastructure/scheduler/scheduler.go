// Package scheduler runs StudyTrack's periodic background jobs, such as the
// achievement reconciliation sweep.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobAlreadyRegistered    = errors.New("job already registered")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself: a tick that finds the previous run still going is skipped.
type Scheduler struct {
	mu sync.RWMutex

	log     *logger.Logger
	tick    time.Duration
	history int
	now     func() time.Time

	jobs      map[string]*scheduledJob
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	runHistory []JobResult
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	nextRun   time.Time
	lastRun   time.Time
	inFlight  bool
	runCount  int64
	failCount int64
	last      *JobResult
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger

	// Tick is how often due jobs are checked. Zero uses one second.
	Tick time.Duration

	// MaxHistorySize bounds the kept results. Zero uses 100.
	MaxHistorySize int

	// Now returns the current time.
	Now func() time.Time
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		log:     cfg.Logger.With(logger.Component("scheduler")),
		tick:    cfg.Tick,
		history: cfg.MaxHistorySize,
		now:     cfg.Now,
		jobs:    make(map[string]*scheduledJob),
	}
}

// Register adds a job. Its first run is one schedule step after registration.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, job.Name())
	}
	s.jobs[job.Name()] = &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(s.now()),
	}
	s.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("schedule", schedule.String()))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = s.now()

	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped", logger.Duration("uptime", s.now().Sub(s.startedAt)))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if sj.inFlight || now.Before(sj.nextRun) {
			continue
		}
		sj.inFlight = true
		sj.nextRun = sj.schedule.Next(now)
		due = append(due, sj)
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(ctx, sj, false)
		}()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	started := s.now()
	s.log.Debug("job started", logger.String("job", name), logger.Bool("manual", manual))

	err := sj.job.Run(ctx)
	completed := s.now()
	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}

	s.mu.Lock()
	if !manual {
		sj.inFlight = false
	}
	sj.lastRun = started
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	sj.last = &result
	s.runHistory = append(s.runHistory, result)
	if len(s.runHistory) > s.history {
		s.runHistory = s.runHistory[len(s.runHistory)-s.history:]
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed",
			logger.String("job", name),
			logger.Latency(result.Duration),
			logger.Err(err))
	} else {
		s.log.Info("job completed",
			logger.String("job", name),
			logger.Latency(result.Duration))
	}
	return result
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	sj, exists := s.jobs[jobName]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, sj, true)
	return &result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns the registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
			LastResult:  sj.last,
		})
	}
	slices.SortFunc(infos, func(a, b JobInfo) int { return cmp.Compare(a.Name, b.Name) })
	return infos
}

// History returns up to limit recent results, oldest first.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runHistory) {
		limit = len(s.runHistory)
	}
	return slices.Clone(s.runHistory[len(s.runHistory)-limit:])
}
