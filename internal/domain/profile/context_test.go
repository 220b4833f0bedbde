package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextBlock_Turn(t *testing.T) {
	p := &LearningProfile{
		LearningStyleNotes:        "visual",
		Strengths:                 []string{"organized", "curious"},
		AreasForGrowth:            []string{"fractions"},
		Misconceptions:            []string{"adds denominators"},
		PreferredExplanationStyle: "diagrams",
		TutorHandoffNotes:         "[Alex Taylor]: likes visuals",
	}

	want := "\n\nSTUDENT PROFILE (shared by all tutors - update this as you learn):\n" +
		"Learning Style: visual\n" +
		"Strengths: organized, curious\n" +
		"Working On: fractions\n" +
		"Prefers: diagrams\n" +
		"Common Mistakes: adds denominators\n" +
		"Team Notes: [Alex Taylor]: likes visuals"
	assert.Equal(t, want, ContextBlock(p, ContextTurn))
}

func TestContextBlock_OpeningOmitsMisconceptions(t *testing.T) {
	p := &LearningProfile{
		Misconceptions:    []string{"adds denominators"},
		MotivationFactors: "sports",
		TutorHandoffNotes: DefaultHandoffNotes,
	}

	got := ContextBlock(p, ContextOpening)
	assert.Equal(t, "\n\nSTUDENT LEARNING PROFILE (shared by all tutors):\n"+
		"Motivated By: sports\n"+
		"Team Notes: "+DefaultHandoffNotes, got)
	assert.NotContains(t, got, "Common Mistakes")
}

func TestContextBlock_Nil(t *testing.T) {
	assert.Equal(t, "", ContextBlock(nil, ContextTurn))
}
