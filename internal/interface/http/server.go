// Package http implements the StudyTrack JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gpadva81/crystal-edu-track-now/internal/application/command"
	"github.com/gpadva81/crystal-edu-track-now/internal/application/query"
	"github.com/gpadva81/crystal-edu-track-now/internal/interface/http/handlers"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds each handler. Tutor turns wait on the language
	// model, so this is larger than a typical API timeout.
	RequestTimeout time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64

	// AllowedOrigins enables CORS when non-empty.
	AllowedOrigins []string

	// RateLimitPerMinute is per client IP. Zero disables limiting.
	RateLimitPerMinute int

	// APIKeyHeader names the header carrying the API key.
	APIKeyHeader string

	// APIKeyHashes are bcrypt hashes of valid keys. Empty disables auth.
	APIKeyHashes []string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       90 * time.Second,
		IdleTimeout:        60 * time.Second,
		RequestTimeout:     75 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 120,
		APIKeyHeader:       "X-API-Key",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains the application handlers the API exposes.
type Dependencies struct {
	// Commands
	CreateAssignment       *command.CreateAssignmentHandler
	UpdateAssignment       *command.UpdateAssignmentHandler
	UpdateAssignmentStatus *command.UpdateAssignmentStatusHandler
	DeleteAssignment       *command.DeleteAssignmentHandler
	CreateClass            *command.CreateClassHandler
	UpdateClass            *command.UpdateClassHandler
	DeleteClass            *command.DeleteClassHandler
	SyncAchievements       *command.SyncAchievementsHandler
	SetReward              *command.SetRewardHandler
	StartTutorSession      *command.StartTutorSessionHandler
	TutorTurn              *command.TutorTurnHandler
	DeleteConversation     *command.DeleteConversationHandler
	ImportAssignments      *command.ImportAssignmentsHandler

	// Queries
	GetProgress       *query.GetProgressHandler
	ListAssignments   *query.ListAssignmentsHandler
	ListClasses       *query.ListClassesHandler
	GetProfile        *query.GetProfileHandler
	GetConversation   *query.GetConversationHandler
	ListConversations *query.ListConversationsHandler

	Health *handlers.HealthChecker
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	router     chi.Router
	httpServer *http.Server
	validator  *handlers.Validator
	auth       *handlers.APIKeyAuth
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewHealthChecker(config.Version)
	}
	s := &Server{
		config:    config,
		deps:      deps,
		validator: handlers.NewValidator(),
		auth:      handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeyHashes),
		logger:    deps.Logger.With(logger.Component("http")),
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestIDHeader)
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(handlers.SecurityHeadersMiddleware)
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(handlers.CORSMiddleware(s.config.AllowedOrigins))
	}
	if s.config.RateLimitPerMinute > 0 {
		r.Use(handlers.NewRateLimiter(s.config.RateLimitPerMinute).Middleware)
	}
	if s.config.MaxBodyBytes > 0 {
		r.Use(handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Health
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", s.handleHealth)
	r.Get("/live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API
	// ─────────────────────────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}

		tutoring := s.deps.StartTutorSession != nil && s.deps.TutorTurn != nil
		if tutoring {
			r.Get("/tutor/personas", s.handleListPersonas)
		}

		r.Route("/students/{studentID}", func(r chi.Router) {
			r.Get("/progress", s.handleGetProgress)
			r.Post("/achievements/sync", s.handleSyncAchievements)
			r.Put("/achievements/{name}/reward", s.handleSetReward)

			r.Get("/assignments", s.handleListAssignments)
			r.Post("/assignments", s.handleCreateAssignment)
			if s.deps.ImportAssignments != nil {
				r.Post("/imports", s.handleImportAssignments)
			}

			r.Get("/classes", s.handleListClasses)
			r.Post("/classes", s.handleCreateClass)

			r.Get("/profile", s.handleGetProfile)

			if tutoring {
				r.Get("/tutor/sessions", s.handleListConversations)
				r.Post("/tutor/sessions", s.handleStartTutorSession)
			}
		})

		r.Patch("/assignments/{assignmentID}", s.handleUpdateAssignment)
		r.Patch("/assignments/{assignmentID}/status", s.handleUpdateAssignmentStatus)
		r.Delete("/assignments/{assignmentID}", s.handleDeleteAssignment)

		r.Patch("/classes/{classID}", s.handleUpdateClass)
		r.Delete("/classes/{classID}", s.handleDeleteClass)

		if tutoring {
			r.Get("/tutor/sessions/{conversationID}", s.handleGetConversation)
			r.Post("/tutor/sessions/{conversationID}/turns", s.handleTutorTurn)
			if s.deps.DeleteConversation != nil {
				r.Delete("/tutor/sessions/{conversationID}", s.handleDeleteConversation)
			}
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestIDHeader echoes chi's request id and carries it into the logger.
func (s *Server) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		w.Header().Set("X-Request-Id", id)
		ctx := logger.WithContext(r.Context(), s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.FromContext(r.Context()).Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Latency(time.Since(start)),
			logger.String("ip", handlers.ClientIP(r)))
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					logger.Any("error", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", middleware.GetReqID(r.Context())))
				handlers.WriteError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}
