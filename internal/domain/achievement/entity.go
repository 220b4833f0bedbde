package achievement

import (
	"context"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// Achievement is the persisted state of one badge for one student.
// (StudentID, Name) is the key; Unlocked never returns to false.
type Achievement struct {
	// ID is the storage identifier.
	ID string `json:"id"`

	// StudentID owns the record.
	StudentID string `json:"student_id"`

	// Name is a catalog badge name.
	Name string `json:"name"`

	// Unlocked is set once the badge condition has been met.
	Unlocked bool `json:"unlocked"`

	// UnlockedAt is when the unlock was first persisted.
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`

	// Reward is free text a parent attaches to the badge.
	Reward string `json:"reward,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewLocked creates a locked record, used when a reward is configured before
// the badge unlocks.
func NewLocked(studentID, name, reward string, now time.Time) *Achievement {
	return &Achievement{
		ID:        shared.NewID(),
		StudentID: studentID,
		Name:      name,
		Reward:    reward,
		CreatedAt: now,
	}
}

// Repository stores achievement records.
type Repository interface {
	// ListByStudent returns all records of a student.
	ListByStudent(ctx context.Context, studentID string) ([]Achievement, error)

	// Unlock marks (studentID, name) unlocked at "at", creating the record if
	// missing. It reports whether this call performed the transition; a record
	// already unlocked is left untouched and reports false.
	Unlock(ctx context.Context, studentID, name string, at time.Time) (bool, error)

	// SetReward creates the record locked if missing, then sets its reward.
	SetReward(ctx context.Context, studentID, name, reward string, now time.Time) (*Achievement, error)
}

// ProgressCache holds computed progress snapshots.
type ProgressCache interface {
	// Get reports false on a miss.
	Get(ctx context.Context, studentID string) (Progress, bool, error)
	Set(ctx context.Context, studentID string, p Progress) error
	Invalidate(ctx context.Context, studentID string) error
}
