package tutor

import (
	"strings"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// SuggestionAudience tells the caller who a reply's suggestions are for.
type SuggestionAudience string

const (
	// AudienceStudent: suggestions are follow-ups the student can send.
	AudienceStudent SuggestionAudience = "student"
	// AudienceTutor: suggestions are questions the tutor plans to ask next.
	AudienceTutor SuggestionAudience = "tutor"
)

// TeachingStyle is a closed set of tutoring strategies. The unexported
// method seals the set to Socratic, Hints and Direct; code that interprets a
// style switches over those three types.
type TeachingStyle interface {
	Key() string
	Label() string
	isTeachingStyle()
}

// Socratic answers only with guiding questions.
type Socratic struct{}

// Hints gives graduated hints without the final answer.
type Hints struct{}

// Direct explains the concept and works an example.
type Direct struct{}

func (Socratic) Key() string   { return "socratic" }
func (Socratic) Label() string { return "Question-only (Socratic)" }
func (Socratic) isTeachingStyle() {}

func (Hints) Key() string   { return "hints" }
func (Hints) Label() string { return "Hint-giving" }
func (Hints) isTeachingStyle() {}

func (Direct) Key() string   { return "direct" }
func (Direct) Label() string { return "Direct explanation" }
func (Direct) isTeachingStyle() {}

// DefaultStyle is used when a session names no style.
var DefaultStyle TeachingStyle = Socratic{}

// Styles returns every style in display order.
func Styles() []TeachingStyle {
	return []TeachingStyle{Socratic{}, Hints{}, Direct{}}
}

// ParseStyle maps a key to its style. Empty means DefaultStyle.
func ParseStyle(key string) (TeachingStyle, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "":
		return DefaultStyle, nil
	case "socratic":
		return Socratic{}, nil
	case "hints":
		return Hints{}, nil
	case "direct":
		return Direct{}, nil
	default:
		return nil, shared.ErrUnknownStyle
	}
}

// Audience returns who the style's suggestions address.
func Audience(s TeachingStyle) SuggestionAudience {
	switch s.(type) {
	case Socratic:
		return AudienceTutor
	case Hints, Direct:
		return AudienceStudent
	default:
		panic("tutor: unhandled teaching style")
	}
}

// turnInstructions is the teaching philosophy block of a reply prompt.
func turnInstructions(s TeachingStyle) string {
	switch s.(type) {
	case Socratic:
		return `CRITICAL - YOUR TEACHING PHILOSOPHY:
- NEVER give direct answers or do the work for them
- Use the Socratic method: ask guiding questions to help them think
- If they're stuck, break the problem into smaller steps with questions
- Encourage their thinking process and celebrate effort
- Keep responses SHORT (2-4 sentences)
- Be warm and supportive, but let THEM figure it out
- Stay true to your unique personality and teaching style
- ADAPT to their learning profile - use their strengths and address their challenges

Guide them with questions, not answers.`
	case Hints:
		return `YOUR TEACHING PHILOSOPHY:
- Do not hand over the final answer
- Give ONE hint at a time, starting small and getting more specific only if they stay stuck
- Point to the relevant rule, formula, or idea rather than applying it for them
- Check what they tried before giving the next hint
- Keep responses SHORT (2-4 sentences)
- Stay true to your unique personality and teaching style
- ADAPT to their learning profile - use their strengths and address their challenges

Nudge them forward with hints.`
	case Direct:
		return `YOUR TEACHING PHILOSOPHY:
- Explain the concept clearly and directly
- Work through a similar example step by step, not their exact homework problem
- Use vocabulary matched to their level and define new terms
- End by asking them to try the next step themselves
- Keep responses focused (4-6 sentences)
- Stay true to your unique personality and teaching style
- ADAPT to their learning profile - use their strengths and address their challenges

Explain clearly, then hand the work back to them.`
	default:
		panic("tutor: unhandled teaching style")
	}
}

// openingInstructions is the role description of a session's first message.
func openingInstructions(s TeachingStyle) string {
	switch s.(type) {
	case Socratic:
		return `Your role is to guide students through their thinking process, NOT to give them answers. Use the student profile to adapt your approach. Ask ONE engaging question to understand what they're working on and where they're stuck.

IMPORTANT: Never provide direct answers. Guide them with questions. Stay true to your personality. Keep it concise and warm (2-3 sentences max).`
	case Hints:
		return `Your role is to help students get unstuck with small hints, NOT to give them answers. Use the student profile to adapt your approach. Ask what they have tried so far so you know which hint to give first.

IMPORTANT: Never provide the final answer. Stay true to your personality. Keep it concise and warm (2-3 sentences max).`
	case Direct:
		return `Your role is to explain concepts clearly so students can then do the work themselves. Use the student profile to adapt your approach. Ask which part of the topic they want explained first.

IMPORTANT: Explain concepts, but let them solve their own homework. Stay true to your personality. Keep it concise and warm (2-3 sentences max).`
	default:
		panic("tutor: unhandled teaching style")
	}
}

// suggestionsDescription documents the suggestions array for the model.
func suggestionsDescription(s TeachingStyle) string {
	switch Audience(s) {
	case AudienceTutor:
		return "2-3 guiding questions you plan to ask next, in order"
	default:
		return "2-3 short follow-up questions or prompts to help the student continue learning"
	}
}
