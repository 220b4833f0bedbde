package achievement

import (
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

const (
	// PointsPerCompletion is awarded for each completed assignment.
	PointsPerCompletion = 10

	// PointsPerLevel is the width of one level.
	PointsPerLevel = 100

	// MaxStreakDays caps the backward scan of ComputeStreak.
	MaxStreakDays = 30
)

// ══════════════════════════════════════════════════════════════════════════════
// COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// CompletedCount counts assignments with status completed.
func CompletedCount(assignments []*homework.Assignment) int {
	n := 0
	for _, a := range assignments {
		if a != nil && a.IsCompleted() {
			n++
		}
	}
	return n
}

// Points returns the score for a completed count.
func Points(completed int) int {
	return PointsPerCompletion * completed
}

// Level returns floor(points/100) + 1.
func Level(points int) int {
	return points/PointsPerLevel + 1
}

// completionDays buckets completed assignments by calendar day of their
// UpdatedAt, read in loc. Assignments without a usable timestamp are skipped.
func completionDays(assignments []*homework.Assignment, loc *time.Location) map[string]struct{} {
	days := make(map[string]struct{})
	for _, a := range assignments {
		if a == nil || !a.IsCompleted() || a.UpdatedAt == nil || a.UpdatedAt.IsZero() {
			continue
		}
		days[timeutil.DayKey(a.UpdatedAt.In(loc))] = struct{}{}
	}
	return days
}

// ComputeStreak counts consecutive calendar days, walking back from now's
// day, that hold at least one completion. A miss on today itself is
// tolerated once; a miss on any earlier day stops the walk. The walk stops
// once the streak reaches MaxStreakDays. Days are read in now's location.
func ComputeStreak(assignments []*homework.Assignment, now time.Time) int {
	days := completionDays(assignments, now.Location())
	return streakFromDays(days, now)
}

func streakFromDays(days map[string]struct{}, now time.Time) int {
	today := timeutil.StartOfDay(now)
	day := today
	streak := 0

	for streak < MaxStreakDays {
		if _, ok := days[timeutil.DayKey(day)]; ok {
			streak++
			day = timeutil.PreviousDay(day)
		} else if streak == 0 && day.Equal(today) {
			day = timeutil.PreviousDay(day)
		} else {
			break
		}
	}
	return streak
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// BadgeState is the evaluated state of one catalog badge.
type BadgeState struct {
	Badge    BadgeDefinition `json:"badge"`
	Unlocked bool            `json:"unlocked"`
	// Progress is min(counter, threshold).
	Progress int `json:"progress"`

	// Reward and UnlockedAt come from the persisted record, if any.
	Reward     string     `json:"reward,omitempty"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// EvaluateBadges compares each definition with its counter.
func EvaluateBadges(catalog Catalog, streak, completed int) []BadgeState {
	states := make([]BadgeState, 0, len(catalog.Badges))
	for _, b := range catalog.Badges {
		var counter int
		switch b.Kind {
		case KindStreak:
			counter = streak
		case KindCompletedCount:
			counter = completed
		}
		states = append(states, BadgeState{
			Badge:    b,
			Unlocked: counter >= b.Threshold,
			Progress: min(counter, b.Threshold),
		})
	}
	return states
}

// Unlock is a pending transition of one badge to unlocked.
type Unlock struct {
	Name string
	At   time.Time
}

// Reconcile returns an Unlock for every evaluated-unlocked badge whose record
// is missing or still locked. It never proposes a lock, so records already
// unlocked are left alone and a second call after applying the result
// returns nothing.
func Reconcile(existing []Achievement, evaluated []BadgeState, now time.Time) []Unlock {
	byName := make(map[string]Achievement, len(existing))
	for _, a := range existing {
		byName[a.Name] = a
	}

	var unlocks []Unlock
	for _, s := range evaluated {
		if !s.Unlocked {
			continue
		}
		if rec, ok := byName[s.Badge.Name]; ok && rec.Unlocked {
			continue
		}
		unlocks = append(unlocks, Unlock{Name: s.Badge.Name, At: now})
	}
	return unlocks
}

// Apply returns existing with unlocks applied, creating records as needed.
// Records already unlocked keep their original UnlockedAt.
func Apply(studentID string, existing []Achievement, unlocks []Unlock) []Achievement {
	out := make([]Achievement, len(existing))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.Name] = i
	}

	for _, u := range unlocks {
		at := u.At
		if i, ok := index[u.Name]; ok {
			if out[i].Unlocked {
				continue
			}
			out[i].Unlocked = true
			out[i].UnlockedAt = &at
			continue
		}
		out = append(out, Achievement{StudentID: studentID, Name: u.Name, Unlocked: true, UnlockedAt: &at})
		index[u.Name] = len(out) - 1
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Progress is everything a progress card shows.
type Progress struct {
	Completed         int          `json:"completed"`
	Points            int          `json:"points"`
	Level             int          `json:"level"`
	Streak            int          `json:"streak"`
	CompletedToday    int          `json:"completed_today"`
	CompletedThisWeek int          `json:"completed_this_week"`
	Badges            []BadgeState `json:"badges"`
}

// Summarize computes the progress snapshot at now.
func Summarize(assignments []*homework.Assignment, catalog Catalog, now time.Time) Progress {
	completed := CompletedCount(assignments)
	streak := ComputeStreak(assignments, now)
	points := Points(completed)

	p := Progress{
		Completed: completed,
		Points:    points,
		Level:     Level(points),
		Streak:    streak,
		Badges:    EvaluateBadges(catalog, streak, completed),
	}
	for _, a := range assignments {
		if a == nil || !a.IsCompleted() || a.UpdatedAt == nil || a.UpdatedAt.IsZero() {
			continue
		}
		if timeutil.SameDay(*a.UpdatedAt, now) {
			p.CompletedToday++
		}
		if timeutil.InWeekOf(*a.UpdatedAt, now) {
			p.CompletedThisWeek++
		}
	}
	return p
}

// Annotate copies rewards and persisted unlock times from records onto the
// matching badges.
func (p *Progress) Annotate(records []Achievement) {
	byName := make(map[string]Achievement, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}
	for i := range p.Badges {
		r, ok := byName[p.Badges[i].Badge.Name]
		if !ok {
			continue
		}
		p.Badges[i].Reward = r.Reward
		if r.Unlocked {
			p.Badges[i].UnlockedAt = r.UnlockedAt
		}
	}
}
