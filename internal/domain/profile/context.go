package profile

import (
	"strings"
)

// ContextMode selects which profile block a prompt gets.
type ContextMode int

const (
	// ContextOpening is used for a session's first assistant message.
	ContextOpening ContextMode = iota
	// ContextTurn is used for every reply and asks tutors to contribute.
	ContextTurn
)

// ContextBlock renders the profile section of a tutor prompt. It returns ""
// for a nil profile. Empty fields are omitted.
func ContextBlock(p *LearningProfile, mode ContextMode) string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	switch mode {
	case ContextOpening:
		b.WriteString("\n\nSTUDENT LEARNING PROFILE (shared by all tutors):\n")
	case ContextTurn:
		b.WriteString("\n\nSTUDENT PROFILE (shared by all tutors - update this as you learn):\n")
	}

	line := func(label, value string) {
		if value != "" {
			b.WriteString(label)
			b.WriteString(value)
			b.WriteString("\n")
		}
	}
	list := func(label string, values []string) {
		if len(values) > 0 {
			line(label, strings.Join(values, ", "))
		}
	}

	line("Learning Style: ", p.LearningStyleNotes)
	list("Strengths: ", p.Strengths)
	list("Working On: ", p.AreasForGrowth)
	line("Prefers: ", p.PreferredExplanationStyle)
	if mode == ContextTurn {
		list("Common Mistakes: ", p.Misconceptions)
	}
	line("Motivated By: ", p.MotivationFactors)
	if p.TutorHandoffNotes != "" {
		b.WriteString("Team Notes: ")
		b.WriteString(p.TutorHandoffNotes)
	}

	return b.String()
}
