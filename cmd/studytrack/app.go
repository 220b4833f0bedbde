package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/config"
	"github.com/gpadva81/crystal-edu-track-now/internal/application/command"
	"github.com/gpadva81/crystal-edu-track-now/internal/application/eventhandler"
	"github.com/gpadva81/crystal-edu-track-now/internal/application/query"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/external/llm"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/messaging"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/memory"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/postgres"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/redis"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/scheduler"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/scheduler/jobs"
	api "github.com/gpadva81/crystal-edu-track-now/internal/interface/http"
	"github.com/gpadva81/crystal-edu-track-now/internal/interface/http/handlers"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/retry"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// app holds the wired process. Close releases everything buildApp opened.
type app struct {
	server    *api.Server
	scheduler *scheduler.Scheduler
	clock     timeutil.Clock
	reconcile *jobs.ReconcileAchievementsJob

	bus     *messaging.InMemoryEventBus
	closers []func()
	log     *logger.Logger
}

// stores groups the repositories of one persistence backend.
type stores struct {
	assignments   homework.Repository
	students      homework.StudentLister
	classes       homework.ClassRepository
	achievements  achievement.Repository
	profiles      profile.Repository
	conversations tutor.Repository
}

func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	health := handlers.NewHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Persistence
	// ─────────────────────────────────────────────────────────────────────────
	var st stores
	switch cfg.App.Store {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		hw := memory.NewHomeworkStore()
		st = stores{
			assignments:   hw,
			students:      hw,
			classes:       memory.NewClassStore(hw),
			achievements:  memory.NewAchievementStore(),
			profiles:      memory.NewProfileStore(),
			conversations: memory.NewConversationStore(),
		}
	default:
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if cfg.Database.MigrateOnStart {
			if err := postgres.NewMigrator(conn, log).Migrate(ctx); err != nil {
				return nil, err
			}
		}
		hw := postgres.NewAssignmentRepository(conn)
		st = stores{
			assignments:   hw,
			students:      hw,
			classes:       postgres.NewClassRepository(conn),
			achievements:  postgres.NewAchievementRepository(conn),
			profiles:      postgres.NewProfileRepository(conn),
			conversations: postgres.NewConversationRepository(conn),
		}
		health.AddCheck("postgres", handlers.PingCheck(conn))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Caches
	// ─────────────────────────────────────────────────────────────────────────
	var (
		progressCache achievement.ProgressCache = memory.NewProgressCache()
		preferences   tutor.PreferenceStore     = memory.NewPreferenceStore()
	)
	if !cfg.Redis.Disabled {
		cache, err := connectRedis(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, using in-process caches", logger.Err(err))
		} else {
			a.closers = append(a.closers, func() { _ = cache.Close() })
			progressCache = redis.NewProgressCache(cache, cfg.Redis.ProgressTTL)
			preferences = redis.NewPreferenceStore(cache, cfg.Redis.PreferenceTTL)
			health.AddCheck("redis", handlers.PingCheck(cache))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Events
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	a.bus = messaging.NewInMemoryEventBus(busCfg)
	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		Bus:    a.bus,
		Retry:  messaging.DefaultRetryConfig(),
		Logger: log,
	})
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))
	if err := eventhandler.NewInvalidateProgressHandler(progressCache, 5*time.Second, log).Register(dispatcher); err != nil {
		return nil, fmt.Errorf("register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Domain services
	// ─────────────────────────────────────────────────────────────────────────
	catalog := achievement.DefaultCatalog()
	if cfg.Gamification.CatalogPath != "" {
		catalog, err = achievement.LoadCatalog(cfg.Gamification.CatalogPath)
		if err != nil {
			return nil, err
		}
		log.Info("badge catalog loaded",
			logger.String("path", cfg.Gamification.CatalogPath),
			logger.Int("badges", len(catalog.Badges)))
	}
	// Streaks and overdue flags count calendar days in the configured zone.
	a.clock = timeutil.ClockIn(cfg.Gamification.Location)
	clock := a.clock

	merger := profile.NewMerger(st.profiles, profile.MergerConfig{
		Policy:      cfg.Profile.DedupPolicy,
		MaxAttempts: cfg.Profile.MaxMergeAttempts,
		Now:         clock,
	}, a.bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Handlers
	// ─────────────────────────────────────────────────────────────────────────
	sync := command.NewSyncAchievementsHandler(st.assignments, st.achievements, catalog, a.bus, clock, log)
	deps := api.Dependencies{
		CreateAssignment:       command.NewCreateAssignmentHandler(st.assignments, sync, a.bus, clock, log),
		UpdateAssignment:       command.NewUpdateAssignmentHandler(st.assignments, st.classes, sync, a.bus, clock, log),
		UpdateAssignmentStatus: command.NewUpdateAssignmentStatusHandler(st.assignments, sync, a.bus, clock, log),
		DeleteAssignment:       command.NewDeleteAssignmentHandler(st.assignments, a.bus, clock, log),
		CreateClass:            command.NewCreateClassHandler(st.classes, a.bus, clock, log),
		UpdateClass:            command.NewUpdateClassHandler(st.classes, a.bus, clock, log),
		DeleteClass:            command.NewDeleteClassHandler(st.classes, a.bus, clock, log),
		SyncAchievements:       sync,
		SetReward:              command.NewSetRewardHandler(st.achievements, catalog, a.bus, clock, log),

		GetProgress:       query.NewGetProgressHandler(st.assignments, st.achievements, catalog, progressCache, clock, log),
		ListAssignments:   query.NewListAssignmentsHandler(st.assignments, clock),
		ListClasses:       query.NewListClassesHandler(st.classes),
		GetProfile:        query.NewGetProfileHandler(merger),
		GetConversation:   query.NewGetConversationHandler(st.conversations),
		ListConversations: query.NewListConversationsHandler(st.conversations),

		Health: health,
		Logger: log,
	}

	if cfg.Features.Tutor || cfg.Features.Import {
		client := llm.New(llm.Config{
			BaseURL:           cfg.LLM.BaseURL,
			APIKey:            cfg.LLM.APIKey,
			DefaultModel:      cfg.LLM.Model,
			Timeout:           cfg.LLM.Timeout,
			MaxAttempts:       cfg.LLM.MaxAttempts,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
			Temperature:       float32(cfg.LLM.Temperature),
		}, log)
		health.AddCheck("llm", handlers.HealthCheckFunc(client.HealthCheck))

		if cfg.Features.Tutor {
			deps.StartTutorSession = command.NewStartTutorSessionHandler(command.StartTutorSessionDeps{
				Conversations: st.conversations,
				Preferences:   preferences,
				Merger:        merger,
				LLM:           client,
				DefaultModel:  client.DefaultModel(),
				Publisher:     a.bus,
				Now:           clock,
				Logger:        log,
			})
			deps.TutorTurn = command.NewTutorTurnHandler(st.conversations, merger, client, a.bus, clock, log)
			deps.DeleteConversation = command.NewDeleteConversationHandler(st.conversations, a.bus, clock, log)
		}
		if cfg.Features.Import {
			deps.ImportAssignments = command.NewImportAssignmentsHandler(command.ImportAssignmentsDeps{
				Assignments: st.assignments,
				Classes:     st.classes,
				LLM:         client,
				Model:       cfg.LLM.VisionModel,
				Location:    cfg.Gamification.Location,
				Publisher:   a.bus,
				Now:         clock,
				Logger:      log,
			})
		}
	}
	log.Info("features configured",
		logger.Bool("tutor", cfg.Features.Tutor),
		logger.Bool("import", cfg.Features.Import))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Background jobs
	// ─────────────────────────────────────────────────────────────────────────
	a.reconcile = jobs.NewReconcileAchievementsJob(st.students, sync, jobs.ReconcileAchievementsConfig{
		Concurrency:    cfg.Scheduler.ReconcileConcurrency,
		StudentTimeout: jobs.DefaultReconcileAchievementsConfig().StudentTimeout,
	}, log)
	if cfg.Scheduler.Enabled {
		a.scheduler = scheduler.New(scheduler.Config{Logger: log})
		if err := a.scheduler.Register(a.reconcile, scheduler.Every(cfg.Scheduler.ReconcileInterval)); err != nil {
			return nil, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := api.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	httpCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes
	httpCfg.Version = cfg.App.Version
	if len(httpCfg.APIKeyHashes) == 0 {
		log.Warn("no API keys configured, the API is unauthenticated")
	}
	a.server = api.NewServer(httpCfg, deps)

	return a, nil
}

// Close drains the event bus, then closes connections in reverse order.
func (a *app) Close() {
	if a.bus != nil {
		_ = a.bus.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTIONS
// ══════════════════════════════════════════════════════════════════════════════

// connectPostgres retries the first connection, since the database often
// starts alongside the service.
func connectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.Host = cfg.Database.Host
	pgCfg.Port = cfg.Database.Port
	pgCfg.Database = cfg.Database.Name
	pgCfg.User = cfg.Database.User
	pgCfg.Password = cfg.Database.Password
	pgCfg.SSLMode = cfg.Database.SSLMode
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

	var conn *postgres.Connection
	err := retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			log.Warn("postgres connection failed", logger.Err(err))
			return retry.Retryable(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("connected to postgres")
	return conn, nil
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Cache, error) {
	rCfg := redis.DefaultConfig()
	rCfg.URL = cfg.Redis.URL
	rCfg.Host = cfg.Redis.Host
	rCfg.Port = cfg.Redis.Port
	rCfg.Password = cfg.Redis.Password
	rCfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rCfg.PoolSize = cfg.Redis.PoolSize
	}
	rCfg.MinIdleConns = cfg.Redis.MinIdleConns
	if cfg.Redis.DialTimeout > 0 {
		rCfg.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rCfg.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rCfg.WriteTimeout = cfg.Redis.WriteTimeout
	}
	return redis.NewCache(ctx, rCfg)
}
