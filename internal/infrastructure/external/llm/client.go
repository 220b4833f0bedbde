// Package llm implements shared.Completer over an OpenAI-compatible chat
// completions API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/circuitbreaker"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config configures the client.
type Config struct {
	// BaseURL overrides the provider endpoint; empty uses OpenAI.
	BaseURL string

	APIKey string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxAttempts counts the first call.
	MaxAttempts int

	// RetryBackoff overrides the first retry delay of the LLM preset.
	RetryBackoff time.Duration

	// RequestsPerSecond and Burst shape outgoing traffic. Zero disables.
	RequestsPerSecond float64
	Burst             int

	Temperature float32
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		DefaultModel:      "gpt-4o",
		Timeout:           60 * time.Second,
		MaxAttempts:       3,
		RequestsPerSecond: 5,
		Burst:             10,
		Temperature:       0.7,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is a rate-limited, retrying chat completion client guarded by a
// circuit breaker.
type Client struct {
	api     *openai.Client
	cfg     Config
	limiter *rate.Limiter
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// New creates a client.
func New(cfg Config, log *logger.Logger) *Client {
	def := DefaultConfig()
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("llm"))

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	retrier := retry.LLMRetrier(cfg.MaxAttempts)
	if cfg.RetryBackoff > 0 {
		retrier = retry.New(
			retry.WithMaxAttempts(cfg.MaxAttempts),
			retry.WithInitialDelay(cfg.RetryBackoff),
			retry.WithMaxDelay(8*cfg.RetryBackoff),
		)
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		limiter: limiter,
		retrier: retrier,
		breaker: circuitbreaker.LLMBreaker(countsAsOutage, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
		log: log,
	}
}

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string {
	return c.cfg.DefaultModel
}

// HealthCheck fails while the circuit breaker is open. It makes no request.
func (c *Client) HealthCheck(context.Context) error {
	if state := c.breaker.State(); state == circuitbreaker.StateOpen {
		return fmt.Errorf("llm circuit %s", state)
	}
	return nil
}

// Complete implements shared.Completer. With a schema the output is decoded
// into Structured; output that is not a JSON object leaves Structured nil
// and is returned as Text.
func (c *Client) Complete(ctx context.Context, req shared.CompletionRequest) (shared.Completion, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return shared.Completion{}, err
	}

	start := time.Now()
	var text string
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = c.attempt(ctx, chatReq)
			return err
		})
	})
	if err != nil {
		c.log.Warn("completion failed",
			logger.String("model", chatReq.Model),
			logger.Latency(time.Since(start)),
			logger.Err(err))
		return shared.Completion{}, toDomainError(err)
	}

	out := shared.Completion{Text: text}
	if req.Schema != nil {
		out.Structured = decodeObject(text)
		if out.Structured == nil {
			c.log.Debug("completion was not a JSON object", logger.String("model", chatReq.Model))
		}
	}
	c.log.Debug("completion done",
		logger.String("model", chatReq.Model),
		logger.Bool("structured", out.IsStructured()),
		logger.Latency(time.Since(start)))
	return out, nil
}

func (c *Client) buildRequest(req shared.CompletionRequest) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.ImageURLs) == 0 {
		msg.Content = req.Prompt
	} else {
		msg.MultiContent = []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: req.Prompt}}
		for _, u := range req.ImageURLs {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: u, Detail: openai.ImageURLDetailAuto},
			})
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: c.cfg.Temperature,
	}

	if req.Schema != nil {
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return openai.ChatCompletionRequest{}, shared.WrapError("llm", "Complete", shared.ErrInvalidInput, "schema is not serializable", err)
		}
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: json.RawMessage(raw),
			},
		}
	}
	return chatReq, nil
}

func (c *Client) attempt(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", retry.Permanent(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", retry.Retryable(errors.New("llm returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// errAttemptTimeout marks an attempt that hit the per-attempt deadline.
var errAttemptTimeout = errors.New("llm attempt timed out")

// classify marks rate limiting, server errors and per-attempt timeouts as
// retryable. Other API errors are permanent.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return retry.Retryable(fmt.Errorf("%w: %v", errAttemptTimeout, err))
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return retry.Retryable(err)
	case status > 0:
		return retry.Permanent(err)
	case errors.Is(err, context.Canceled):
		return retry.Permanent(err)
	default:
		return retry.Retryable(err)
	}
}

// countsAsOutage tells the breaker which failures mean the provider is down.
// Client errors and caller cancellation do not.
func countsAsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func toDomainError(err error) error {
	switch {
	case circuitbreaker.IsRejected(err):
		return shared.WrapError("llm", "Complete", shared.ErrServiceUnavailable, "language model is unavailable", err)
	case errors.Is(err, errAttemptTimeout), errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("llm", "Complete", shared.ErrTimeout, "language model request timeout", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return shared.WrapError("llm", "Complete", shared.ErrExternalService, "language model request failed", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING
// ══════════════════════════════════════════════════════════════════════════════

// decodeObject parses text as a JSON object, tolerating a surrounding
// markdown code fence. Anything else yields nil.
func decodeObject(text string) map[string]any {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
