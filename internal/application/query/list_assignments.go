package query

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ASSIGNMENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListAssignmentsQuery filters a student's assignments. Empty fields match
// everything.
type ListAssignmentsQuery struct {
	StudentID string
	ClassID   string
	Subject   string
	Status    string
	Priority  string

	// Sort is "field" or "-field". Empty means newest first.
	Sort string

	Limit int
}

// filter validates the query and converts it.
func (q ListAssignmentsQuery) filter() (homework.Filter, error) {
	if _, err := shared.NewStudentID(q.StudentID); err != nil {
		return homework.Filter{}, err
	}
	f := homework.Filter{
		StudentID: q.StudentID,
		ClassID:   q.ClassID,
		Subject:   q.Subject,
		Limit:     shared.ClampLimit(q.Limit),
	}
	if q.Status != "" {
		s, err := homework.ParseStatus(q.Status)
		if err != nil {
			return homework.Filter{}, err
		}
		f.Status = s
	}
	if q.Priority != "" {
		p := homework.Priority(q.Priority)
		if !p.IsValid() {
			return homework.Filter{}, shared.ErrInvalidPriority
		}
		f.Priority = p
	}
	sort, err := homework.ParseSort(q.Sort)
	if err != nil {
		return homework.Filter{}, err
	}
	f.Sort = sort
	return f, nil
}

// AssignmentDTO is one row of the list.
type AssignmentDTO struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	ClassID     string     `json:"class_id,omitempty"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject,omitempty"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Source      string     `json:"source,omitempty"`
	Overdue     bool       `json:"overdue"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ToAssignmentDTO converts an assignment for display at now.
func ToAssignmentDTO(a *homework.Assignment, now time.Time) AssignmentDTO {
	return AssignmentDTO{
		ID:          a.ID,
		StudentID:   a.StudentID,
		ClassID:     a.ClassID,
		Title:       a.Title,
		Subject:     a.Subject,
		Description: a.Description,
		DueDate:     a.DueDate,
		Status:      string(a.Status),
		Priority:    string(a.Priority),
		Source:      a.Source,
		Overdue:     a.IsOverdue(now),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ListAssignmentsHandler handles ListAssignmentsQuery.
type ListAssignmentsHandler struct {
	assignments homework.Repository
	now         timeutil.Clock
}

// NewListAssignmentsHandler creates a new ListAssignmentsHandler.
func NewListAssignmentsHandler(assignments homework.Repository, now timeutil.Clock) *ListAssignmentsHandler {
	if now == nil {
		now = time.Now
	}
	return &ListAssignmentsHandler{assignments: assignments, now: now}
}

// Handle executes the query.
func (h *ListAssignmentsHandler) Handle(ctx context.Context, q ListAssignmentsQuery) ([]AssignmentDTO, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	items, err := h.assignments.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list_assignments: %w", err)
	}
	now := h.now()
	out := make([]AssignmentDTO, 0, len(items))
	for _, a := range items {
		out = append(out, ToAssignmentDTO(a, now))
	}
	return out, nil
}
