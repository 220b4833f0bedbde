package homework

import (
	"context"
	"strings"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUERY OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// SortField names a sortable assignment column.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortDueDate   SortField = "due_date"
	SortTitle     SortField = "title"
	SortPriority  SortField = "priority"
)

// Sort is a field plus direction.
type Sort struct {
	Field SortField
	Desc  bool
}

// ParseSort parses "field" or "-field" (descending). Empty means newest first.
func ParseSort(raw string) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{Field: SortCreatedAt, Desc: true}, nil
	}
	s := Sort{}
	if strings.HasPrefix(raw, "-") {
		s.Desc = true
		raw = raw[1:]
	}
	s.Field = SortField(raw)
	switch s.Field {
	case SortCreatedAt, SortUpdatedAt, SortDueDate, SortTitle, SortPriority:
		return s, nil
	default:
		return Sort{}, shared.ErrInvalidSortField
	}
}

// Filter selects assignments by equality on optional fields.
type Filter struct {
	StudentID string
	ClassID   string
	Subject   string
	Status    Status
	Priority  Priority
	Sort      Sort
	Limit     int
}

// Matches reports whether a satisfies the equality filters.
func (f Filter) Matches(a *Assignment) bool {
	if f.StudentID != "" && a.StudentID != f.StudentID {
		return false
	}
	if f.ClassID != "" && a.ClassID != f.ClassID {
		return false
	}
	if f.Subject != "" && a.Subject != f.Subject {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Priority != "" && a.Priority != f.Priority {
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores assignments.
type Repository interface {
	// Create stores a new assignment.
	Create(ctx context.Context, a *Assignment) error

	// BulkCreate stores several assignments atomically.
	BulkCreate(ctx context.Context, items []*Assignment) error

	// GetByID returns ErrAssignmentNotFound when missing.
	GetByID(ctx context.Context, id string) (*Assignment, error)

	// Update replaces mutable fields. Returns ErrAssignmentNotFound when missing.
	Update(ctx context.Context, a *Assignment) error

	// List returns assignments matching f, sorted and limited.
	List(ctx context.Context, f Filter) ([]*Assignment, error)

	// ListByStudent returns every assignment of the student, unsorted.
	ListByStudent(ctx context.Context, studentID string) ([]*Assignment, error)

	// Delete removes an assignment. Returns ErrAssignmentNotFound when missing.
	Delete(ctx context.Context, id string) error
}

// ClassRepository stores classes. Names are unique per student,
// case-insensitively; a clash returns ErrClassNameTaken.
type ClassRepository interface {
	Create(ctx context.Context, c *Class) error

	// GetByID returns ErrClassNotFound when missing.
	GetByID(ctx context.Context, id string) (*Class, error)

	// Update replaces mutable fields. Returns ErrClassNotFound when missing.
	Update(ctx context.Context, c *Class) error

	// ListByStudent returns the student's classes ordered by name.
	ListByStudent(ctx context.Context, studentID string) ([]*Class, error)

	// Delete removes a class. Assignments linked to it keep their data and
	// lose the link. Returns ErrClassNotFound when missing.
	Delete(ctx context.Context, id string) error
}

// StudentLister enumerates students that own at least one assignment.
type StudentLister interface {
	ListStudentIDs(ctx context.Context) ([]string, error)
}
