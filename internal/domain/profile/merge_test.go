package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func sample() *LearningProfile {
	return &LearningProfile{
		ID:                        "p1",
		StudentID:                 "s1",
		LearningStyleNotes:        "visual learner",
		Strengths:                 []string{"organized"},
		AreasForGrowth:            []string{"fractions"},
		Misconceptions:            nil,
		PreferredExplanationStyle: "diagrams",
		MotivationFactors:         "",
		TutorHandoffNotes:         "[Alex]: likes visuals",
		Version:                   3,
		CreatedAt:                 t0,
		UpdatedAt:                 t0,
	}
}

func TestMerge_StrengthAppend(t *testing.T) {
	p := &LearningProfile{Strengths: []string{"organized"}}
	got := Merge(p, Update{StrengthObserved: "persistent"}, "Alex Taylor", DedupNone)

	assert.Equal(t, []string{"organized", "persistent"}, got.Strengths)
	assert.Equal(t, []string{"organized"}, p.Strengths, "input must not be modified")
}

func TestMerge_HandoffConcatenation(t *testing.T) {
	p := &LearningProfile{TutorHandoffNotes: "[Alex]: likes visuals"}
	got := Merge(p, Update{HandoffNote: "struggles with fractions"}, "Sarah", DedupNone)

	assert.Equal(t, "[Alex]: likes visuals | [Sarah]: struggles with fractions", got.TutorHandoffNotes)
}

func TestMerge_HandoffOnEmpty(t *testing.T) {
	got := Merge(&LearningProfile{}, Update{HandoffNote: "needs breaks"}, "Priya Patel", DedupNone)
	assert.Equal(t, "[Priya Patel]: needs breaks", got.TutorHandoffNotes)
}

func TestMerge_CumulativeStrings(t *testing.T) {
	p := sample()
	got := Merge(p, Update{LearningInsight: "prefers examples", MotivationNote: "sports analogies"}, "James Wilson", DedupNone)

	assert.Equal(t, "visual learner | prefers examples", got.LearningStyleNotes)
	assert.Equal(t, "sports analogies", got.MotivationFactors)

	got = Merge(got, Update{MotivationNote: "earning rewards"}, "James Wilson", DedupNone)
	assert.Equal(t, "sports analogies | earning rewards", got.MotivationFactors)
}

func TestMerge_PreferredStyleOverwrites(t *testing.T) {
	got := Merge(sample(), Update{PreferredStyle: "step-by-step"}, "Alex Taylor", DedupNone)
	assert.Equal(t, "step-by-step", got.PreferredExplanationStyle)

	got = Merge(got, Update{PreferredStyle: "   "}, "Alex Taylor", DedupNone)
	assert.Equal(t, "step-by-step", got.PreferredExplanationStyle)
}

func TestMerge_AllListFields(t *testing.T) {
	got := Merge(sample(), Update{
		StrengthObserved: "curious",
		AreaToWorkOn:     "long division",
		Misconception:    "thinks 0.5 > 0.25 because 5 < 25",
	}, "Alex Taylor", DedupNone)

	assert.Equal(t, []string{"organized", "curious"}, got.Strengths)
	assert.Equal(t, []string{"fractions", "long division"}, got.AreasForGrowth)
	assert.Equal(t, []string{"thinks 0.5 > 0.25 because 5 < 25"}, got.Misconceptions)
}

func TestMerge_EmptyUpdateIsIdentity(t *testing.T) {
	profiles := []*LearningProfile{
		sample(),
		{},
		New("s2", t0),
		{Strengths: []string{}, Misconceptions: []string{"a", "a"}},
	}
	empties := []Update{
		{},
		{LearningInsight: " ", StrengthObserved: "\t", HandoffNote: "\n"},
	}
	for _, p := range profiles {
		for _, u := range empties {
			assert.Equal(t, p, Merge(p, u, "Alex Taylor", DedupNone))
			assert.Equal(t, p, Merge(p, u, "Alex Taylor", DedupCaseInsensitive))
		}
	}
}

func TestMerge_AppendLaw(t *testing.T) {
	updates := []struct{ u1, u2 Update }{
		{Update{StrengthObserved: "a"}, Update{StrengthObserved: "b"}},
		{Update{StrengthObserved: "a"}, Update{}},
		{Update{}, Update{StrengthObserved: "b"}},
		{Update{StrengthObserved: "a"}, Update{StrengthObserved: "a"}},
	}
	for _, tt := range updates {
		p := sample()
		want := append([]string{}, p.Strengths...)
		for _, s := range []string{tt.u1.StrengthObserved, tt.u2.StrengthObserved} {
			if s != "" {
				want = append(want, s)
			}
		}

		got := Merge(Merge(p, tt.u1, "X", DedupNone), tt.u2, "Y", DedupNone)
		assert.Equal(t, want, got.Strengths)
	}
}

func TestMerge_DoesNotTouchBookkeeping(t *testing.T) {
	p := sample()
	got := Merge(p, Update{StrengthObserved: "x"}, "Alex Taylor", DedupNone)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.UpdatedAt, got.UpdatedAt)
}

func TestMerge_DedupCaseInsensitive(t *testing.T) {
	p := &LearningProfile{Strengths: []string{"Organized"}}

	got := Merge(p, Update{StrengthObserved: " organized "}, "Alex Taylor", DedupCaseInsensitive)
	assert.Equal(t, []string{"Organized"}, got.Strengths)

	got = Merge(p, Update{StrengthObserved: " organized "}, "Alex Taylor", DedupNone)
	assert.Equal(t, []string{"Organized", "organized"}, got.Strengths)
}

func TestParseDedupPolicy(t *testing.T) {
	p, err := ParseDedupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DedupNone, p)

	p, err = ParseDedupPolicy("CASE_INSENSITIVE")
	require.NoError(t, err)
	assert.Equal(t, DedupCaseInsensitive, p)

	_, err = ParseDedupPolicy("set")
	assert.Error(t, err)
}

func TestUpdateFromMap(t *testing.T) {
	u := UpdateFromMap(map[string]any{
		"strength_observed": "persistent",
		"area_to_work_on":   42,
		"handoff_note":      "likes puzzles",
		"unknown":           "ignored",
	})
	assert.Equal(t, Update{StrengthObserved: "persistent", HandoffNote: "likes puzzles"}, u)
	assert.Equal(t, []string{"strength_observed", "handoff_note"}, u.Fields())
	assert.False(t, u.IsEmpty())

	assert.True(t, UpdateFromMap(nil).IsEmpty())
}

func TestNewProfileDefaults(t *testing.T) {
	p := New("s1", t0)
	assert.Equal(t, DefaultHandoffNotes, p.TutorHandoffNotes)
	assert.Empty(t, p.Strengths)
	assert.NotNil(t, p.Strengths)
	assert.Equal(t, int64(0), p.Version)
	assert.NotEmpty(t, p.ID)
}

func TestClone_IsDeep(t *testing.T) {
	p := sample()
	c := p.Clone()
	c.Strengths[0] = "changed"
	assert.Equal(t, "organized", p.Strengths[0])
}
