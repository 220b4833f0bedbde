package tutor

import (
	"fmt"
	"strings"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

const (
	// HistoryWindow is how many trailing messages a reply prompt quotes.
	HistoryWindow = 10

	// RecentConversations is how many other sessions are summarized.
	RecentConversations = 5

	// TurnSchemaName labels the reply schema.
	TurnSchemaName = "tutor_turn"
)

// OpeningInput is everything the first assistant message depends on.
type OpeningInput struct {
	Persona Persona
	Style   TeachingStyle
	Grade   string
	Topic   string
	Profile *profile.LearningProfile
	Recent  []*Conversation
}

// TurnInput is everything a reply depends on. History already ends with the
// student's new message.
type TurnInput struct {
	Persona Persona
	Style   TeachingStyle
	Grade   string
	Subject string
	Profile *profile.LearningProfile
	Recent  []*Conversation
	History []Message
	Message string
}

// BuildOpeningPrompt renders the prompt for a session's first message.
func BuildOpeningPrompt(in OpeningInput) string {
	grade := ""
	if in.Grade != "" {
		grade = fmt.Sprintf("The student is in %s grade. Adjust your language and explanations to be appropriate for their reading and comprehension level.", in.Grade)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a tutor with this personality: %s\n\n", in.Persona.Name, in.Persona.Persona)
	b.WriteString(grade)
	b.WriteString(profile.ContextBlock(in.Profile, profile.ContextOpening))
	b.WriteString(recentBlock(in.Recent))
	fmt.Fprintf(&b, "\n\nThe student's homework topic is: \"%s\".\n\n", in.Topic)
	b.WriteString(openingInstructions(in.Style))
	return b.String()
}

// BuildTurnPrompt renders the prompt for a reply.
func BuildTurnPrompt(in TurnInput) string {
	grade := ""
	if in.Grade != "" {
		grade = fmt.Sprintf("The student is in %s grade. Use vocabulary, sentence structure, and explanations appropriate for their reading and comprehension level. ", in.Grade)
	}
	subject := ""
	if in.Subject != "" {
		subject = fmt.Sprintf("The student is studying %s. ", in.Subject)
	}

	history := in.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a tutor with this personality: %s\n\n", in.Persona.Name, in.Persona.Persona)
	b.WriteString(grade)
	b.WriteString(subject)
	b.WriteString(profile.ContextBlock(in.Profile, profile.ContextTurn))
	b.WriteString(recentBlock(in.Recent))
	b.WriteString("\n\nPrevious conversation:\n")
	b.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "\n\nStudent's message: %s\n\n", in.Message)
	b.WriteString(turnInstructions(in.Style))
	b.WriteString("\n\nAs you interact, if you notice insights about their learning style, update the profile_updates field.")
	return b.String()
}

func recentBlock(recent []*Conversation) string {
	if len(recent) == 0 {
		return ""
	}
	if len(recent) > RecentConversations {
		recent = recent[:RecentConversations]
	}
	lines := make([]string, 0, len(recent))
	for _, c := range recent {
		subject := c.Subject
		if subject == "" {
			subject = "General"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %d messages with %s", c.Title, subject, c.Len(), c.Persona().Name))
	}
	return "\n\nRECENT CONVERSATION HISTORY (for context):\n" + strings.Join(lines, "\n")
}

// TurnSchema is the JSON schema requested for replies.
func TurnSchema(style TeachingStyle) map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": str,
			"suggestions": map[string]any{
				"type":        "array",
				"items":       str,
				"description": suggestionsDescription(style),
			},
			"profile_updates": map[string]any{
				"type":        "object",
				"description": "Updates to share with other tutors about this student (only include if you noticed something new)",
				"properties": map[string]any{
					"learning_insight":  str,
					"strength_observed": str,
					"area_to_work_on":   str,
					"misconception":     str,
					"preferred_style":   str,
					"motivation_note":   str,
					"handoff_note":      str,
				},
			},
		},
		"required": []string{"answer"},
	}
}

// TurnReply is a decoded reply.
type TurnReply struct {
	Answer      string
	Suggestions []string
	Audience    SuggestionAudience
	// Updates is nil when the reply carried no usable observations.
	Updates *profile.Update
	// Structured is false when the model output could not be decoded.
	Structured bool
}

// ParseTurnReply interprets a completion. Output without a decoded object or
// without an answer degrades to a text-only reply with no updates.
func ParseTurnReply(c shared.Completion, style TeachingStyle) TurnReply {
	reply := TurnReply{Audience: Audience(style)}

	answer, _ := c.Structured["answer"].(string)
	if !c.IsStructured() || strings.TrimSpace(answer) == "" {
		reply.Answer = strings.TrimSpace(c.Text)
		return reply
	}

	reply.Structured = true
	reply.Answer = answer
	reply.Suggestions = profile.ToSequence(c.Structured["suggestions"])

	if raw, ok := c.Structured["profile_updates"].(map[string]any); ok {
		u := profile.UpdateFromMap(raw)
		if !u.IsEmpty() {
			reply.Updates = &u
		}
	}
	return reply
}
