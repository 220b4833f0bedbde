package homework

import (
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCREENSHOT IMPORT
// ══════════════════════════════════════════════════════════════════════════════

// ImportSource marks assignments created by the screenshot importer.
const ImportSource = "schoology_import"

// ImportSchemaName labels the extraction schema.
const ImportSchemaName = "assignment_extraction"

// ImportPrompt asks the model to read assignments off LMS screenshots.
const ImportPrompt = `Analyze these Schoology screenshot(s) and extract EVERY homework assignment visible. For each assignment provide:
- title: the assignment name
- class_name: the course/class name
- subject: the academic subject
- description: any instructions or details visible
- due_date: in ISO format (YYYY-MM-DD), assume year 2026 if not shown
- teacher_name: instructor name if visible
- teacher_email: instructor email if visible
- priority: "low", "medium", or "high" based on due date urgency

Extract ALL assignments you can see across all images. If you see even partial information, include it with what you have.`

// ImportSchema is the JSON schema requested for extraction.
func ImportSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assignments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":         str,
						"class_name":    str,
						"subject":       str,
						"description":   str,
						"due_date":      str,
						"teacher_name":  str,
						"teacher_email": str,
						"priority": map[string]any{
							"type": "string",
							"enum": []string{"low", "medium", "high"},
						},
					},
				},
			},
		},
	}
}

// Extracted is one assignment read by the model. Fields may be partial.
type Extracted struct {
	Title        string
	ClassName    string
	Subject      string
	Description  string
	DueDate      string
	TeacherName  string
	TeacherEmail string
	Priority     string
}

// ParseExtraction decodes the model's reply. A reply that is not an object
// fails with ErrImportUnstructured; one without titled assignments fails
// with ErrImportNoAssignments.
func ParseExtraction(c shared.Completion) ([]Extracted, error) {
	if !c.IsStructured() {
		return nil, shared.ErrImportUnstructured
	}
	raw, _ := c.Structured["assignments"].([]any)

	out := make([]Extracted, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := Extracted{
			Title:        stringField(m, "title"),
			ClassName:    stringField(m, "class_name"),
			Subject:      stringField(m, "subject"),
			Description:  stringField(m, "description"),
			DueDate:      stringField(m, "due_date"),
			TeacherName:  stringField(m, "teacher_name"),
			TeacherEmail: stringField(m, "teacher_email"),
			Priority:     stringField(m, "priority"),
		}
		if e.Title == "" {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, shared.ErrImportNoAssignments
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// ImportPlan is what an import will write.
type ImportPlan struct {
	Classes     []*Class
	Assignments []*Assignment

	// Duplicates counts extracted items matching an existing assignment or
	// an earlier item of the same extraction.
	Duplicates int
}

// PlanImport matches extracted items against the student's classes and
// assignments. Unknown class names become new classes; items whose title
// and due day match an existing assignment are skipped. Due dates are read
// in loc; unparseable dates are dropped.
func PlanImport(studentID string, items []Extracted, classes []*Class, existing []*Assignment, now time.Time, loc *time.Location) ImportPlan {
	if loc == nil {
		loc = time.UTC
	}
	plan := ImportPlan{}

	known := append([]*Class(nil), classes...)
	classFor := func(e Extracted) string {
		if NameKey(e.ClassName) == "" {
			return ""
		}
		if c, ok := FindClassByName(known, e.ClassName); ok {
			return c.ID
		}
		subject := e.Subject
		if subject == "" {
			subject = DefaultClassSubject
		}
		c := &Class{
			ID:           shared.NewID(),
			StudentID:    studentID,
			Name:         e.ClassName,
			Subject:      subject,
			TeacherName:  e.TeacherName,
			TeacherEmail: e.TeacherEmail,
			Color:        PaletteColor(len(known)),
			CreatedAt:    now,
		}
		known = append(known, c)
		plan.Classes = append(plan.Classes, c)
		return c.ID
	}

	seen := make(map[string]struct{}, len(existing)+len(items))
	for _, a := range existing {
		seen[a.DuplicateKey()] = struct{}{}
	}

	for _, e := range items {
		a := &Assignment{
			ID:          shared.NewID(),
			StudentID:   studentID,
			Title:       e.Title,
			Subject:     e.Subject,
			Description: e.Description,
			DueDate:     parseDueDate(e.DueDate, loc),
			Status:      StatusTodo,
			Priority:    PriorityOrDefault(e.Priority),
			Source:      ImportSource,
			CreatedAt:   now,
			UpdatedAt:   &now,
		}
		key := a.DuplicateKey()
		if _, dup := seen[key]; dup {
			plan.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		a.ClassID = classFor(e)
		plan.Assignments = append(plan.Assignments, a)
	}
	return plan
}

// parseDueDate accepts YYYY-MM-DD, optionally followed by a time part.
func parseDueDate(raw string, loc *time.Location) *time.Time {
	if len(raw) < len("2006-01-02") {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw[:10], loc)
	if err != nil {
		return nil
	}
	return &t
}
