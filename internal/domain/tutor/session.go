package tutor

import (
	"context"
	"strings"
)

// SessionConfig is the explicit per-session choice of model, persona and
// teaching style.
type SessionConfig struct {
	Model   string
	Persona Persona
	Style   TeachingStyle
}

// Choice is the raw, user-facing form of a SessionConfig, as remembered
// between sessions.
type Choice struct {
	Model     string `json:"model,omitempty"`
	PersonaID string `json:"persona_id,omitempty"`
	Style     string `json:"style,omitempty"`
}

// Overlay returns c with the non-empty fields of o applied on top.
func (c Choice) Overlay(o Choice) Choice {
	if strings.TrimSpace(o.Model) != "" {
		c.Model = strings.TrimSpace(o.Model)
	}
	if strings.TrimSpace(o.PersonaID) != "" {
		c.PersonaID = strings.TrimSpace(o.PersonaID)
	}
	if strings.TrimSpace(o.Style) != "" {
		c.Style = strings.TrimSpace(o.Style)
	}
	return c
}

// Resolve builds a SessionConfig. Unknown personas fall back to the default
// persona; unknown styles are an error. An empty model uses defaultModel.
func (c Choice) Resolve(defaultModel string) (SessionConfig, error) {
	style, err := ParseStyle(c.Style)
	if err != nil {
		return SessionConfig{}, err
	}
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	return SessionConfig{
		Model:   model,
		Persona: PersonaByID(c.PersonaID),
		Style:   style,
	}, nil
}

// ChoiceOf returns the choice that resolves to cfg.
func ChoiceOf(cfg SessionConfig) Choice {
	c := Choice{Model: cfg.Model, PersonaID: cfg.Persona.ID}
	if cfg.Style != nil {
		c.Style = cfg.Style.Key()
	}
	return c
}

// PreferenceStore remembers a student's last session choice.
type PreferenceStore interface {
	// Remember stores the choice.
	Remember(ctx context.Context, studentID string, c Choice) error

	// Recall returns the last remembered choice and whether one exists.
	Recall(ctx context.Context, studentID string) (Choice, bool, error)
}
