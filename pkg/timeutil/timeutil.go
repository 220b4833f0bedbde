// Package timeutil provides calendar-day helpers that honour the location of
// the time values they are given. StudyTrack buckets days in the location of
// the "now" value handed to it, so every helper here takes the location from
// its argument instead of a package-level zone.
package timeutil

import (
	"fmt"
	"time"
)

// LoadLocation resolves an IANA zone name, treating "" and "Local" as the
// process local zone.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// Clock returns the current time. Tests substitute fixed clocks.
type Clock func() time.Time

// ClockIn returns a Clock reporting wall time in loc. A nil loc means UTC.
func ClockIn(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}

// PreviousDay returns midnight of the calendar day before t's.
// Calendar arithmetic keeps DST transitions out of the result.
func PreviousDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns Sunday 00:00 of t's week.
func StartOfWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
}

// EndOfWeek returns the last nanosecond of Saturday of t's week.
func EndOfWeek(t time.Time) time.Time {
	start := StartOfWeek(t)
	return EndOfDay(start.AddDate(0, 0, 6))
}

// SameDay reports whether instant falls on the calendar day of ref, reading
// instant in ref's location.
func SameDay(instant, ref time.Time) bool {
	a := instant.In(ref.Location())
	y1, m1, d1 := a.Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// InWeekOf reports whether instant falls in the Sunday-started week of ref.
func InWeekOf(instant, ref time.Time) bool {
	a := instant.In(ref.Location())
	return !a.Before(StartOfWeek(ref)) && !a.After(EndOfWeek(ref))
}

// DayKey formats t's calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
