package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a student. All StudyTrack data is scoped by it.
type StudentID string

// IsValid checks that the id is a well-formed UUID.
func (s StudentID) IsValid() bool {
	_, err := uuid.Parse(string(s))
	return err == nil
}

// String returns the id as a string.
func (s StudentID) String() string {
	return string(s)
}

// NewStudentID validates and normalizes id.
func NewStudentID(id string) (StudentID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", NewDomainError("shared", "NewStudentID", ErrEmptyValue, "student id is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", WrapError("shared", "NewStudentID", ErrInvalidID, "student id must be a UUID", err)
	}
	return StudentID(parsed.String()), nil
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ClampLimit bounds a requested list limit. Zero or negative means default.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
