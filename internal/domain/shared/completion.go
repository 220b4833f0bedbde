package shared

import "context"

// CompletionRequest is one call to the language model.
type CompletionRequest struct {
	// Model overrides the configured default when non-empty.
	Model string

	// Prompt is the full user prompt.
	Prompt string

	// Schema, when set, asks for a JSON object matching it.
	Schema map[string]any

	// SchemaName labels the schema for providers that require one.
	SchemaName string

	// ImageURLs are attached to the prompt as images.
	ImageURLs []string
}

// Completion is the model's answer. Structured is nil when no schema was
// requested or the output could not be decoded into an object; Text always
// carries the raw output.
type Completion struct {
	Text       string
	Structured map[string]any
}

// IsStructured reports whether a JSON object was decoded.
func (c Completion) IsStructured() bool {
	return c.Structured != nil
}

// Completer is the language-model collaborator.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
