package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/circuitbreaker"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

type recorded struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string         `json:"name"`
			Schema map[string]any `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
	Messages []json.RawMessage `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:      srv.URL + "/v1",
		APIKey:       "test",
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		Timeout:      2 * time.Second,
	}, nil)
}

func TestComplete_Structured(t *testing.T) {
	var got recorded
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"answer":"What is 1/2 + 1/4?","suggestions":["a","b"]}`))
	})

	out, err := c.Complete(context.Background(), shared.CompletionRequest{
		Prompt:     "hi",
		Schema:     map[string]any{"type": "object"},
		SchemaName: "tutor_turn",
	})
	require.NoError(t, err)
	require.True(t, out.IsStructured())
	assert.Equal(t, "What is 1/2 + 1/4?", out.Structured["answer"])

	assert.Equal(t, "gpt-4o", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.Equal(t, "tutor_turn", got.ResponseFormat.JSONSchema.Name)
	assert.Equal(t, "object", got.ResponseFormat.JSONSchema.Schema["type"])
}

func TestComplete_TextFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completionBody("Sorry, I can only answer in words."))
	})

	out, err := c.Complete(context.Background(), shared.CompletionRequest{
		Model:  "gpt-4o-mini",
		Prompt: "hi",
		Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.False(t, out.IsStructured())
	assert.Equal(t, "Sorry, I can only answer in words.", out.Text)
}

func TestComplete_ImagesUseMultiContent(t *testing.T) {
	var got recorded
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, completionBody("ok"))
	})

	_, err := c.Complete(context.Background(), shared.CompletionRequest{
		Prompt:    "extract",
		ImageURLs: []string{"https://example.com/a.png"},
	})
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, string(got.Messages[0]), `"image_url"`)
	assert.Contains(t, string(got.Messages[0]), "https://example.com/a.png")
	assert.Nil(t, got.ResponseFormat)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody("third time lucky"))
	})

	out, err := c.Complete(context.Background(), shared.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	})

	_, err := c.Complete(context.Background(), shared.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, circuitbreaker.StateClosed, c.breaker.State())
}

func TestComplete_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"down","type":"server_error"}}`)
	})

	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), shared.CompletionRequest{Prompt: fmt.Sprint(i)})
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.breaker.State())

	before := calls.Load()
	_, err := c.Complete(context.Background(), shared.CompletionRequest{Prompt: "again"})
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, before, calls.Load())
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{"plain", `{"a":"b"}`, map[string]any{"a": "b"}},
		{"fenced", "```json\n{\"a\":\"b\"}\n```", map[string]any{"a": "b"}},
		{"bare fence", "```\n{\"a\":1}\n```", map[string]any{"a": float64(1)}},
		{"array", `["a"]`, nil},
		{"prose", "hello", nil},
		{"broken", `{"a":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeObject(tt.in))
		})
	}
}
