// Package homework contains the assignment and class model of StudyTrack.
// It has no infrastructure dependencies.
package homework

import (
	"slices"
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the work state of an assignment. Any status may move to any other.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", shared.ErrInvalidStatus
	}
	return s, nil
}

// Priority orders assignments for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// PriorityOrDefault maps unknown or empty values to medium.
func PriorityOrDefault(raw string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT
// ══════════════════════════════════════════════════════════════════════════════

// Assignment is one unit of homework.
type Assignment struct {
	// ID is the assignment identifier.
	ID string

	// StudentID owns the assignment.
	StudentID string

	// ClassID links to a Class. Empty when unassigned.
	ClassID string

	Title       string
	Subject     string
	Description string

	// DueDate is optional.
	DueDate *time.Time

	Status   Status
	Priority Priority

	// Source records how the assignment entered the system, e.g. "import".
	Source string

	CreatedAt time.Time

	// UpdatedAt is the last modification instant. Nil means unknown, and such
	// assignments never count toward a streak.
	UpdatedAt *time.Time
}

// NewAssignment builds a todo assignment.
func NewAssignment(studentID, title string, priority Priority, now time.Time) (*Assignment, error) {
	a := &Assignment{
		ID:        shared.NewID(),
		StudentID: studentID,
		Title:     strings.TrimSpace(title),
		Status:    StatusTodo,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: &now,
	}
	if a.Priority == "" {
		a.Priority = PriorityMedium
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks required fields and enum values.
func (a *Assignment) Validate() error {
	if a.StudentID == "" {
		return shared.NewDomainError("homework", "Validate", shared.ErrEmptyValue, "student id is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return shared.ErrEmptyTitle
	}
	if !a.Status.IsValid() {
		return shared.ErrInvalidStatus
	}
	if !a.Priority.IsValid() {
		return shared.ErrInvalidPriority
	}
	return nil
}

// SetStatus moves the assignment to s and stamps UpdatedAt. It returns the
// previous status.
func (a *Assignment) SetStatus(s Status, now time.Time) (Status, error) {
	if !s.IsValid() {
		return a.Status, shared.ErrInvalidStatus
	}
	prev := a.Status
	a.Status = s
	a.UpdatedAt = &now
	return prev, nil
}

// IsCompleted reports whether the assignment is done.
func (a *Assignment) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// IsOverdue reports whether the due date passed without completion.
func (a *Assignment) IsOverdue(now time.Time) bool {
	return a.DueDate != nil && !a.IsCompleted() && a.DueDate.Before(now)
}

// Patch is a partial edit of an assignment's details. Nil fields are left
// unchanged; an empty ClassID unlinks the class.
type Patch struct {
	Title       *string
	Subject     *string
	Description *string
	ClassID     *string
	Priority    *Priority

	// DueDate replaces the due date. ClearDueDate removes it and wins over DueDate.
	DueDate      *time.Time
	ClearDueDate bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Subject == nil && p.Description == nil &&
		p.ClassID == nil && p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

// Apply validates p and copies it onto a, stamping UpdatedAt. On error a is
// unchanged.
func (a *Assignment) Apply(p Patch, now time.Time) error {
	if p.IsEmpty() {
		return shared.ErrEmptyPatch
	}
	next := *a
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Subject != nil {
		next.Subject = strings.TrimSpace(*p.Subject)
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.ClassID != nil {
		next.ClassID = *p.ClassID
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		next.DueDate = nil
	case p.DueDate != nil:
		d := *p.DueDate
		next.DueDate = &d
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = &now
	*a = next
	return nil
}

// DuplicateKey identifies an assignment for import de-duplication:
// lowercased title plus due day.
func (a *Assignment) DuplicateKey() string {
	due := ""
	if a.DueDate != nil {
		due = a.DueDate.Format("2006-01-02")
	}
	return strings.ToLower(strings.TrimSpace(a.Title)) + "|" + due
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS
// ══════════════════════════════════════════════════════════════════════════════

// Class is a school class that assignments can belong to.
type Class struct {
	ID           string
	StudentID    string
	Name         string
	Subject      string
	TeacherName  string
	TeacherEmail string
	Color        string
	CreatedAt    time.Time
}

// DefaultClassSubject is used when a class has no subject.
const DefaultClassSubject = "General"

// classPalette cycles colors for imported classes.
var classPalette = []string{"blue", "green", "purple", "orange", "pink"}

// ValidClassColor reports whether color may be set on a class. Red is
// selectable but never assigned by the palette.
func ValidClassColor(color string) bool {
	return color == "red" || slices.Contains(classPalette, color)
}

// NewClass builds a class with the default subject and the first palette color.
func NewClass(studentID, name string, now time.Time) (*Class, error) {
	c := &Class{
		ID:        shared.NewID(),
		StudentID: studentID,
		Name:      strings.TrimSpace(name),
		Subject:   DefaultClassSubject,
		Color:     classPalette[0],
		CreatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required fields and the color.
func (c *Class) Validate() error {
	if c.StudentID == "" {
		return shared.NewDomainError("homework", "ValidateClass", shared.ErrEmptyValue, "student id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return shared.ErrEmptyClassName
	}
	if !ValidClassColor(c.Color) {
		return shared.ErrInvalidClassColor
	}
	return nil
}

// ClassPatch is a partial edit of a class. Nil fields are left unchanged.
type ClassPatch struct {
	Name         *string
	Subject      *string
	TeacherName  *string
	TeacherEmail *string
	Color        *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ClassPatch) IsEmpty() bool {
	return p.Name == nil && p.Subject == nil && p.TeacherName == nil &&
		p.TeacherEmail == nil && p.Color == nil
}

// Apply validates p and copies it onto c. On error c is unchanged.
func (c *Class) Apply(p ClassPatch) error {
	if p.IsEmpty() {
		return shared.ErrEmptyPatch
	}
	next := *c
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Subject != nil {
		next.Subject = strings.TrimSpace(*p.Subject)
		if next.Subject == "" {
			next.Subject = DefaultClassSubject
		}
	}
	if p.TeacherName != nil {
		next.TeacherName = strings.TrimSpace(*p.TeacherName)
	}
	if p.TeacherEmail != nil {
		next.TeacherEmail = strings.TrimSpace(*p.TeacherEmail)
	}
	if p.Color != nil {
		next.Color = strings.ToLower(strings.TrimSpace(*p.Color))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// PaletteColor returns the n-th palette color.
func PaletteColor(n int) string {
	if n < 0 {
		n = -n
	}
	return classPalette[n%len(classPalette)]
}

// NameKey is the case-insensitive key used to match class names.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FindClassByName returns the class whose name matches case-insensitively.
func FindClassByName(classes []*Class, name string) (*Class, bool) {
	key := NameKey(name)
	if key == "" {
		return nil, false
	}
	for _, c := range classes {
		if NameKey(c.Name) == key {
			return c, true
		}
	}
	return nil, false
}
