package messaging

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher subscribes named handlers to a bus, wrapping each in the
// registered middleware and a retry loop. Handlers that still fail are
// recorded in the dead letter queue.
type Dispatcher struct {
	bus         shared.EventSubscriber
	middlewares []Middleware
	retry       RetryConfig
	deadLetterQ *DeadLetterQueue
	log         *logger.Logger
	mu          sync.Mutex
}

// RetryConfig contains retry configuration.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	Bus   shared.EventSubscriber
	Retry RetryConfig

	// DeadLetterQueueSize bounds the dead letter queue. Zero uses 100.
	DeadLetterQueueSize int

	Logger *logger.Logger
}

// Registration describes one handler.
type Registration struct {
	Name    string
	Handler shared.EventHandler

	// MaxAttempts overrides the dispatcher retry setting when positive.
	MaxAttempts int
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryConfig()
	}
	if config.DeadLetterQueueSize <= 0 {
		config.DeadLetterQueueSize = 100
	}
	return &Dispatcher{
		bus:         config.Bus,
		retry:       config.Retry,
		deadLetterQ: NewDeadLetterQueue(config.DeadLetterQueueSize),
		log:         config.Logger.With(logger.Component("dispatcher")),
	}
}

// Use adds middleware. Middleware applies to handlers registered after it.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// Register subscribes handler under name for each of the event types.
func (d *Dispatcher) Register(name string, handler shared.EventHandler, types ...shared.EventType) error {
	for _, t := range types {
		if err := d.RegisterHandler(t, Registration{Name: name, Handler: handler}); err != nil {
			return err
		}
	}
	return nil
}

// RegisterHandler subscribes one registration for eventType.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg Registration) error {
	if reg.Handler == nil {
		return ErrNilHandler
	}

	d.mu.Lock()
	middlewares := append([]Middleware(nil), d.middlewares...)
	d.mu.Unlock()

	handler := reg.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	attempts := d.retry.MaxAttempts
	if reg.MaxAttempts > 0 {
		attempts = reg.MaxAttempts
	}
	retrier := retry.New(
		retry.WithMaxAttempts(attempts),
		retry.WithInitialDelay(d.retry.InitialBackoff),
		retry.WithMaxDelay(d.retry.MaxBackoff),
		retry.WithRetryIf(func(error) bool { return true }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			d.log.Debug("retrying handler",
				logger.String("handler", reg.Name),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay),
				logger.Err(err))
		}),
	)

	return d.bus.Subscribe(eventType, func(event shared.Event) error {
		err := retrier.Do(context.Background(), func(context.Context) error {
			return handler(event)
		})
		if err != nil {
			d.deadLetterQ.Add(DeadLetterEntry{
				Event:       event,
				HandlerName: reg.Name,
				Error:       err,
				Attempts:    attempts,
				FailedAt:    time.Now(),
			})
			return fmt.Errorf("handler %s failed after %d attempts: %w", reg.Name, attempts, err)
		}
		return nil
	})
}

// DeadLetterQueue returns the dead letter queue.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware turns handler panics into errors.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())))
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs each handler execution at debug level.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			log.Debug("handler executed",
				logger.String("event_type", string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Latency(time.Since(start)),
				logger.Bool("ok", err == nil))
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a failed event.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue keeps the most recent failures, dropping the oldest.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry.
func (q *DeadLetterQueue) Add(e DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, e)
}

// Entries returns a copy of the queued entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetterEntry(nil), q.entries...)
}

// Len returns the number of queued entries.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
