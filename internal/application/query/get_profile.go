package query

import (
	"context"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery identifies the student.
type GetProfileQuery struct {
	StudentID string
}

// Validate validates the query.
func (q GetProfileQuery) Validate() error {
	_, err := shared.NewStudentID(q.StudentID)
	return err
}

// GetProfileHandler handles GetProfileQuery. A student without a profile
// gets the starting profile, which is stored on first read.
type GetProfileHandler struct {
	merger *profile.Merger
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(merger *profile.Merger) *GetProfileHandler {
	return &GetProfileHandler{merger: merger}
}

// Handle executes the query.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*profile.LearningProfile, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return h.merger.GetOrCreate(ctx, q.StudentID)
}
