package homework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

func TestParseExtraction(t *testing.T) {
	t.Run("text reply", func(t *testing.T) {
		_, err := ParseExtraction(shared.Completion{Text: "Sorry, I can't read that."})
		assert.ErrorIs(t, err, shared.ErrImportUnstructured)
	})

	t.Run("no titled items", func(t *testing.T) {
		_, err := ParseExtraction(shared.Completion{Structured: map[string]any{
			"assignments": []any{map[string]any{"class_name": "Math"}, "junk"},
		}})
		assert.ErrorIs(t, err, shared.ErrImportNoAssignments)
	})

	t.Run("partial fields", func(t *testing.T) {
		items, err := ParseExtraction(shared.Completion{Structured: map[string]any{
			"assignments": []any{
				map[string]any{"title": " Worksheet 4 ", "class_name": "Algebra", "due_date": "2026-03-15", "priority": 3},
			},
		}})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Worksheet 4", items[0].Title)
		assert.Equal(t, "Algebra", items[0].ClassName)
		assert.Empty(t, items[0].Priority)
	})
}

func TestPlanImport(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	classes := []*Class{{ID: "c-alg", StudentID: "s1", Name: "Algebra", Color: "blue"}}
	existing := []*Assignment{{ID: "a0", StudentID: "s1", Title: "Worksheet 4", DueDate: &due}}

	items := []Extracted{
		{Title: "worksheet 4", ClassName: "algebra", DueDate: "2026-03-15"},
		{Title: "Lab report", ClassName: "Biology", Subject: "Science", TeacherName: "Ms. Green", DueDate: "2026-03-18T00:00:00Z", Priority: "HIGH"},
		{Title: "Reading log", ClassName: "ALGEBRA", DueDate: "next week", Priority: "urgent"},
		{Title: "Lab report", ClassName: "biology", DueDate: "2026-03-18"},
		{Title: "Poem"},
	}

	plan := PlanImport("s1", items, classes, existing, now, time.UTC)

	assert.Equal(t, 2, plan.Duplicates)
	require.Len(t, plan.Classes, 1)
	bio := plan.Classes[0]
	assert.Equal(t, "Biology", bio.Name)
	assert.Equal(t, "Science", bio.Subject)
	assert.Equal(t, "Ms. Green", bio.TeacherName)
	assert.Equal(t, PaletteColor(1), bio.Color)

	require.Len(t, plan.Assignments, 3)
	lab, log, poem := plan.Assignments[0], plan.Assignments[1], plan.Assignments[2]

	assert.Equal(t, bio.ID, lab.ClassID)
	assert.Equal(t, PriorityHigh, lab.Priority)
	require.NotNil(t, lab.DueDate)
	assert.Equal(t, "2026-03-18", lab.DueDate.Format("2006-01-02"))

	assert.Equal(t, "c-alg", log.ClassID)
	assert.Nil(t, log.DueDate)
	assert.Equal(t, PriorityMedium, log.Priority)

	assert.Empty(t, poem.ClassID)
	for _, a := range plan.Assignments {
		assert.Equal(t, StatusTodo, a.Status)
		assert.Equal(t, ImportSource, a.Source)
		assert.NoError(t, a.Validate())
	}
}
