package achievement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())

	want := []struct {
		name      string
		kind      BadgeKind
		threshold int
	}{
		{"Beginner", KindCompletedCount, 5},
		{"Dedicated", KindCompletedCount, 20},
		{"On Fire", KindStreak, 3},
		{"Champion", KindCompletedCount, 50},
	}
	require.Len(t, c.Badges, len(want))
	for i, w := range want {
		assert.Equal(t, w.name, c.Badges[i].Name)
		assert.Equal(t, w.kind, c.Badges[i].Kind)
		assert.Equal(t, w.threshold, c.Badges[i].Threshold)
	}

	b, ok := c.Lookup("On Fire")
	require.True(t, ok)
	assert.Equal(t, KindStreak, b.Kind)
	_, ok = c.Lookup("on fire")
	assert.False(t, ok)
}

func TestParseCatalog(t *testing.T) {
	doc := []byte(`
badges:
  - name: Starter
    kind: completed_count
    threshold: 1
  - name: Week Warrior
    kind: streak
    threshold: 7
    description: Seven days in a row
`)
	c, err := ParseCatalog(doc)
	require.NoError(t, err)
	require.Len(t, c.Badges, 2)
	assert.Equal(t, "Week Warrior", c.Badges[1].Name)
	assert.Equal(t, 7, c.Badges[1].Threshold)
	assert.Equal(t, "Seven days in a row", c.Badges[1].Description)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":          "badges: []",
		"unknown kind":   "badges:\n  - {name: X, kind: level, threshold: 2}",
		"zero threshold": "badges:\n  - {name: X, kind: streak, threshold: 0}",
		"duplicate":      "badges:\n  - {name: X, kind: streak, threshold: 1}\n  - {name: X, kind: streak, threshold: 2}",
		"missing name":   "badges:\n  - {kind: streak, threshold: 1}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	_, err := ParseCatalog([]byte("badges: [oops"))
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)

	path := filepath.Join(t.TempDir(), "badges.yaml")
	require.NoError(t, os.WriteFile(path, []byte("badges:\n  - {name: One, kind: completed_count, threshold: 1}\n"), 0o600))

	c, err = LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "One", c.Badges[0].Name)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
