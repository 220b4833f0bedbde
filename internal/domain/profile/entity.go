// Package profile holds the shared learning profile that every tutor persona
// reads and contributes to, and the merge rules that keep those
// contributions from overwriting each other.
package profile

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// DefaultHandoffNotes seeds the handoff field of a new profile.
const DefaultHandoffNotes = "New student - getting to know their learning style."

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// LearningProfile is the cross-session memory about one student.
type LearningProfile struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`

	// LearningStyleNotes accumulates " | "-delimited insights.
	LearningStyleNotes string `json:"learning_style_notes"`

	// Strengths, AreasForGrowth and Misconceptions only grow by append.
	Strengths      []string `json:"strengths"`
	AreasForGrowth []string `json:"areas_for_growth"`
	Misconceptions []string `json:"misconceptions"`

	// PreferredExplanationStyle is last-writer-wins.
	PreferredExplanationStyle string `json:"preferred_explanation_style"`

	// MotivationFactors accumulates like LearningStyleNotes.
	MotivationFactors string `json:"motivation_factors"`

	// TutorHandoffNotes accumulates "[Persona]: note" segments.
	TutorHandoffNotes string `json:"tutor_handoff_notes"`

	// Version is bumped by every successful save.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the starting profile for a student.
func New(studentID string, now time.Time) *LearningProfile {
	return &LearningProfile{
		ID:                shared.NewID(),
		StudentID:         studentID,
		Strengths:         []string{},
		AreasForGrowth:    []string{},
		Misconceptions:    []string{},
		TutorHandoffNotes: DefaultHandoffNotes,
		Version:           0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Clone returns a deep copy.
func (p *LearningProfile) Clone() *LearningProfile {
	c := *p
	c.Strengths = slices.Clone(p.Strengths)
	c.AreasForGrowth = slices.Clone(p.AreasForGrowth)
	c.Misconceptions = slices.Clone(p.Misconceptions)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// Update is one turn's worth of tutor observations. Every field is optional;
// whitespace-only values count as absent.
type Update struct {
	LearningInsight  string `json:"learning_insight,omitempty"`
	StrengthObserved string `json:"strength_observed,omitempty"`
	AreaToWorkOn     string `json:"area_to_work_on,omitempty"`
	Misconception    string `json:"misconception,omitempty"`
	PreferredStyle   string `json:"preferred_style,omitempty"`
	MotivationNote   string `json:"motivation_note,omitempty"`
	HandoffNote      string `json:"handoff_note,omitempty"`
}

// UpdateFromMap reads an Update from a decoded JSON object. Keys that are
// missing or not strings are treated as absent.
func UpdateFromMap(m map[string]any) Update {
	get := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return Update{
		LearningInsight:  get("learning_insight"),
		StrengthObserved: get("strength_observed"),
		AreaToWorkOn:     get("area_to_work_on"),
		Misconception:    get("misconception"),
		PreferredStyle:   get("preferred_style"),
		MotivationNote:   get("motivation_note"),
		HandoffNote:      get("handoff_note"),
	}
}

// Fields lists the JSON names of the non-empty fields.
func (u Update) Fields() []string {
	var out []string
	add := func(name, v string) {
		if present(v) {
			out = append(out, name)
		}
	}
	add("learning_insight", u.LearningInsight)
	add("strength_observed", u.StrengthObserved)
	add("area_to_work_on", u.AreaToWorkOn)
	add("misconception", u.Misconception)
	add("preferred_style", u.PreferredStyle)
	add("motivation_note", u.MotivationNote)
	add("handoff_note", u.HandoffNote)
	return out
}

// IsEmpty reports whether the update carries nothing.
func (u Update) IsEmpty() bool {
	return len(u.Fields()) == 0
}

func present(v string) bool {
	return strings.TrimSpace(v) != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists learning profiles.
//
// Implementations normalize list columns with ToSequence on every read.
type Repository interface {
	// GetByStudent returns ErrProfileNotFound when the student has none.
	GetByStudent(ctx context.Context, studentID string) (*LearningProfile, error)

	// Create stores a new profile. Returns an ErrAlreadyExists error when the
	// student already has one.
	Create(ctx context.Context, p *LearningProfile) error

	// Save writes p if the stored version still equals expectedVersion and
	// turnID has not been applied to this student before. On success the
	// stored version is expectedVersion+1 and p.Version is updated.
	// Returns ErrProfileConflict or ErrTurnAlreadyMerged otherwise.
	Save(ctx context.Context, p *LearningProfile, expectedVersion int64, turnID string) error
}
