// Package memory provides in-process implementations of the StudyTrack
// repositories. They back the "memory" store mode of the server and the
// concurrency tests; every method is safe for concurrent use.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// HomeworkStore implements homework.Repository.
type HomeworkStore struct {
	mu    sync.RWMutex
	items map[string]homework.Assignment
}

// NewHomeworkStore creates an empty store.
func NewHomeworkStore() *HomeworkStore {
	return &HomeworkStore{items: make(map[string]homework.Assignment)}
}

func copyAssignment(a homework.Assignment) *homework.Assignment {
	if a.DueDate != nil {
		d := *a.DueDate
		a.DueDate = &d
	}
	if a.UpdatedAt != nil {
		u := *a.UpdatedAt
		a.UpdatedAt = &u
	}
	return &a
}

// Create implements homework.Repository.
func (s *HomeworkStore) Create(ctx context.Context, a *homework.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[a.ID]; exists {
		return shared.NewDomainError("homework", "Create", shared.ErrAlreadyExists, "assignment already exists")
	}
	s.items[a.ID] = *copyAssignment(*a)
	return nil
}

// BulkCreate implements homework.Repository. Either all items are stored or none.
func (s *HomeworkStore) BulkCreate(ctx context.Context, items []*homework.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range items {
		if _, exists := s.items[a.ID]; exists {
			return shared.NewDomainError("homework", "BulkCreate", shared.ErrAlreadyExists, "assignment already exists")
		}
	}
	for _, a := range items {
		s.items[a.ID] = *copyAssignment(*a)
	}
	return nil
}

// GetByID implements homework.Repository.
func (s *HomeworkStore) GetByID(ctx context.Context, id string) (*homework.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, shared.ErrAssignmentNotFound
	}
	return copyAssignment(a), nil
}

// Update implements homework.Repository.
func (s *HomeworkStore) Update(ctx context.Context, a *homework.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[a.ID]; !ok {
		return shared.ErrAssignmentNotFound
	}
	s.items[a.ID] = *copyAssignment(*a)
	return nil
}

// List implements homework.Repository.
func (s *HomeworkStore) List(ctx context.Context, f homework.Filter) ([]*homework.Assignment, error) {
	s.mu.RLock()
	out := make([]*homework.Assignment, 0)
	for _, a := range s.items {
		if f.Matches(&a) {
			out = append(out, copyAssignment(a))
		}
	}
	s.mu.RUnlock()

	sortAssignments(out, f.Sort)
	if limit := shared.ClampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByStudent implements homework.Repository.
func (s *HomeworkStore) ListByStudent(ctx context.Context, studentID string) ([]*homework.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*homework.Assignment, 0)
	for _, a := range s.items {
		if a.StudentID == studentID {
			out = append(out, copyAssignment(a))
		}
	}
	return out, nil
}

// ListStudentIDs implements homework.StudentLister. IDs are sorted.
func (s *HomeworkStore) ListStudentIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, a := range s.items {
		seen[a.StudentID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// Delete implements homework.Repository.
func (s *HomeworkStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return shared.ErrAssignmentNotFound
	}
	delete(s.items, id)
	return nil
}

var priorityRank = map[homework.Priority]int{
	homework.PriorityLow:    0,
	homework.PriorityMedium: 1,
	homework.PriorityHigh:   2,
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// sortAssignments orders by the sort field, then by id for stable output.
func sortAssignments(items []*homework.Assignment, s homework.Sort) {
	if s.Field == "" {
		s = homework.Sort{Field: homework.SortCreatedAt, Desc: true}
	}
	slices.SortFunc(items, func(a, b *homework.Assignment) int {
		var c int
		switch s.Field {
		case homework.SortUpdatedAt:
			c = timeOrZero(a.UpdatedAt).Compare(timeOrZero(b.UpdatedAt))
		case homework.SortDueDate:
			c = timeOrZero(a.DueDate).Compare(timeOrZero(b.DueDate))
		case homework.SortTitle:
			c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case homework.SortPriority:
			c = cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority])
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if s.Desc {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSES
// ══════════════════════════════════════════════════════════════════════════════

// ClassStore implements homework.ClassRepository. Deleting a class clears
// the link on the assignments of the paired HomeworkStore, matching the
// ON DELETE SET NULL of the Postgres schema.
type ClassStore struct {
	mu          sync.RWMutex
	items       map[string]homework.Class
	assignments *HomeworkStore
}

// NewClassStore creates an empty store. assignments may be nil when no
// assignments reference the classes.
func NewClassStore(assignments *HomeworkStore) *ClassStore {
	return &ClassStore{items: make(map[string]homework.Class), assignments: assignments}
}

// nameTaken reports whether another class of the student uses name. Callers hold mu.
func (s *ClassStore) nameTaken(c *homework.Class) bool {
	key := homework.NameKey(c.Name)
	for id, other := range s.items {
		if id != c.ID && other.StudentID == c.StudentID && homework.NameKey(other.Name) == key {
			return true
		}
	}
	return false
}

// Create implements homework.ClassRepository.
func (s *ClassStore) Create(ctx context.Context, c *homework.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[c.ID]; exists {
		return shared.NewDomainError("homework", "CreateClass", shared.ErrAlreadyExists, "class already exists")
	}
	if s.nameTaken(c) {
		return shared.ErrClassNameTaken
	}
	s.items[c.ID] = *c
	return nil
}

// GetByID implements homework.ClassRepository.
func (s *ClassStore) GetByID(ctx context.Context, id string) (*homework.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return nil, shared.ErrClassNotFound
	}
	return &c, nil
}

// Update implements homework.ClassRepository.
func (s *ClassStore) Update(ctx context.Context, c *homework.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; !ok {
		return shared.ErrClassNotFound
	}
	if s.nameTaken(c) {
		return shared.ErrClassNameTaken
	}
	s.items[c.ID] = *c
	return nil
}

// ListByStudent implements homework.ClassRepository.
func (s *ClassStore) ListByStudent(ctx context.Context, studentID string) ([]*homework.Class, error) {
	s.mu.RLock()
	out := make([]*homework.Class, 0)
	for _, c := range s.items {
		if c.StudentID == studentID {
			cc := c
			out = append(out, &cc)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *homework.Class) int {
		return cmp.Or(strings.Compare(homework.NameKey(a.Name), homework.NameKey(b.Name)), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Delete implements homework.ClassRepository.
func (s *ClassStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return shared.ErrClassNotFound
	}
	delete(s.items, id)
	if s.assignments != nil {
		s.assignments.unlinkClass(id)
	}
	return nil
}

// unlinkClass clears ClassID on every assignment of the class.
func (s *HomeworkStore) unlinkClass(classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.items {
		if a.ClassID == classID {
			a.ClassID = ""
			s.items[id] = a
		}
	}
}
