package query

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASS QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ClassDTO is one class of a student.
type ClassDTO struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	TeacherName  string    `json:"teacher_name,omitempty"`
	TeacherEmail string    `json:"teacher_email,omitempty"`
	Color        string    `json:"color"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToClassDTO converts a class.
func ToClassDTO(c *homework.Class) ClassDTO {
	return ClassDTO{
		ID:           c.ID,
		StudentID:    c.StudentID,
		Name:         c.Name,
		Subject:      c.Subject,
		TeacherName:  c.TeacherName,
		TeacherEmail: c.TeacherEmail,
		Color:        c.Color,
		CreatedAt:    c.CreatedAt,
	}
}

// ListClassesHandler lists a student's classes by name.
type ListClassesHandler struct {
	classes homework.ClassRepository
}

// NewListClassesHandler creates a new ListClassesHandler.
func NewListClassesHandler(classes homework.ClassRepository) *ListClassesHandler {
	return &ListClassesHandler{classes: classes}
}

// Handle executes the query.
func (h *ListClassesHandler) Handle(ctx context.Context, studentID string) ([]ClassDTO, error) {
	if _, err := shared.NewStudentID(studentID); err != nil {
		return nil, err
	}
	items, err := h.classes.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list_classes: %w", err)
	}
	out := make([]ClassDTO, 0, len(items))
	for _, c := range items {
		out = append(out, ToClassDTO(c))
	}
	return out, nil
}
