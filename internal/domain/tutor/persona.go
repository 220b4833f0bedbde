// Package tutor models AI tutoring sessions: personas, teaching styles,
// conversations and the prompts built from them.
package tutor

// Persona is a tutor character. Personas are plain data; behaviour that
// differs between sessions comes from the TeachingStyle.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Persona     string `json:"persona"`
	Color       string `json:"color"`
}

// DefaultPersonaID is used when a session names no persona or an unknown one.
const DefaultPersonaID = "alex"

var personas = []Persona{
	{
		ID:          "alex",
		Name:        "Alex Taylor",
		Description: "Patient and methodical",
		Persona:     "Alex is a calm, analytical tutor who breaks problems into logical steps. He uses real-world examples and asks thoughtful questions to help you discover solutions on your own.",
		Color:       "amber",
	},
	{
		ID:          "maria",
		Name:        "Sarah Miller",
		Description: "Encouraging and creative",
		Persona:     "Sarah is an energetic, supportive tutor who celebrates every small win. She uses creative metaphors and encourages you to think outside the box while building your confidence.",
		Color:       "purple",
	},
	{
		ID:          "james",
		Name:        "James Wilson",
		Description: "Straightforward and practical",
		Persona:     "James is a no-nonsense tutor who gets straight to the point. He focuses on practical applications and helps you understand why concepts matter in the real world.",
		Color:       "blue",
	},
	{
		ID:          "priya",
		Name:        "Priya Patel",
		Description: "Warm and detail-oriented",
		Persona:     "Priya is a patient, thorough tutor who ensures you understand every detail. She asks clarifying questions and helps you connect new concepts to what you already know.",
		Color:       "green",
	},
}

// Personas returns the catalog in display order.
func Personas() []Persona {
	out := make([]Persona, len(personas))
	copy(out, personas)
	return out
}

// FindPersona looks up a persona by id.
func FindPersona(id string) (Persona, bool) {
	for _, p := range personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// PersonaByID returns the persona with id, or the default persona.
func PersonaByID(id string) Persona {
	if p, ok := FindPersona(id); ok {
		return p
	}
	p, _ := FindPersona(DefaultPersonaID)
	return p
}
