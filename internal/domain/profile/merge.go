package profile

import (
	"fmt"
	"slices"
	"strings"
)

// Delimiter joins segments of cumulative text fields.
const Delimiter = " | "

// DedupPolicy controls repeated list observations.
type DedupPolicy string

const (
	// DedupNone keeps every append, duplicates included.
	DedupNone DedupPolicy = "none"
	// DedupCaseInsensitive skips an append equal to an existing element
	// ignoring case and surrounding space.
	DedupCaseInsensitive DedupPolicy = "case_insensitive"
)

// ParseDedupPolicy maps a config value to a policy. Empty means DedupNone.
func ParseDedupPolicy(raw string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DedupNone:
		return DedupNone, nil
	case DedupCaseInsensitive:
		return DedupCaseInsensitive, nil
	default:
		return "", fmt.Errorf("unknown profile dedup policy %q", raw)
	}
}

// Merge folds u into current and returns the new profile; current is not
// modified. contributor is the display name of the tutor persona that
// produced u. Fields absent from u are carried over unchanged, so an empty
// update returns a profile equal to current.
func Merge(current *LearningProfile, u Update, contributor string, policy DedupPolicy) *LearningProfile {
	next := current.Clone()

	next.Strengths = appendItem(next.Strengths, u.StrengthObserved, policy)
	next.AreasForGrowth = appendItem(next.AreasForGrowth, u.AreaToWorkOn, policy)
	next.Misconceptions = appendItem(next.Misconceptions, u.Misconception, policy)

	next.LearningStyleNotes = concat(next.LearningStyleNotes, u.LearningInsight)
	next.MotivationFactors = concat(next.MotivationFactors, u.MotivationNote)

	if present(u.HandoffNote) {
		next.TutorHandoffNotes = concat(next.TutorHandoffNotes, HandoffSegment(contributor, u.HandoffNote))
	}

	if present(u.PreferredStyle) {
		next.PreferredExplanationStyle = strings.TrimSpace(u.PreferredStyle)
	}

	return next
}

// HandoffSegment formats one handoff contribution.
func HandoffSegment(contributor, note string) string {
	return fmt.Sprintf("[%s]: %s", contributor, strings.TrimSpace(note))
}

func appendItem(list []string, v string, policy DedupPolicy) []string {
	if !present(v) {
		return list
	}
	v = strings.TrimSpace(v)
	if policy == DedupCaseInsensitive && slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), v)
	}) {
		return list
	}
	return append(list, v)
}

func concat(cur, v string) string {
	if !present(v) {
		return cur
	}
	v = strings.TrimSpace(v)
	if cur == "" {
		return v
	}
	return cur + Delimiter + v
}
