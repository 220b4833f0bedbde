package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	ts := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)

	got := StartOfDay(ts)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestSameDayUsesReferenceLocation(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	ref := time.Date(2024, 3, 10, 12, 0, 0, 0, loc)

	// 2024-03-11 05:00 UTC is 2024-03-10 22:00 at UTC-7.
	assert.True(t, SameDay(time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC), ref))
	// 2024-03-11 08:00 UTC is 2024-03-11 01:00 at UTC-7.
	assert.False(t, SameDay(time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC), ref))
}

func TestPreviousDayAcrossMonth(t *testing.T) {
	got := PreviousDay(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfWeekIsSunday(t *testing.T) {
	// 2024-03-13 is a Wednesday.
	got := StartOfWeek(time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Sunday, got.Weekday())
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)

	sunday := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, StartOfDay(sunday), StartOfWeek(sunday))
}

func TestInWeekOf(t *testing.T) {
	ref := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	assert.True(t, InWeekOf(time.Date(2024, 3, 16, 23, 0, 0, 0, time.UTC), ref))
	assert.False(t, InWeekOf(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), ref))
	assert.False(t, InWeekOf(time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC), ref))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Nowhere/Atlantis")
	assert.Error(t, err)
}
