package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesKind(t *testing.T) {
	assert.True(t, errors.Is(ErrAssignmentNotFound, ErrNotFound))
	assert.True(t, IsNotFound(ErrProfileNotFound))
	assert.True(t, IsConflict(ErrProfileConflict))
	assert.True(t, errors.Is(ErrTurnAlreadyMerged, ErrAlreadyProcessed))
	assert.False(t, IsNotFound(ErrInvalidStatus))
}

func TestDomainError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("llm", "Complete", ErrServiceUnavailable, "request failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.True(t, IsExternalService(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "llm.Complete: request failed: connection reset", err.Error())
}

func TestDomainError_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("sync achievements: %w", ErrAchievementNotFound)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrEmptyTitle))
	assert.True(t, IsValidation(ErrUnknownStyle))
	assert.True(t, IsValidation(ErrInvalidCatalog))
}

func TestNewStudentID(t *testing.T) {
	id, err := NewStudentID(" 7C9E6679-7425-40DE-944B-E07FC1F90AE7 ")
	require.NoError(t, err)
	assert.Equal(t, StudentID("7c9e6679-7425-40de-944b-e07fc1f90ae7"), id)
	assert.True(t, id.IsValid())

	_, err = NewStudentID("")
	assert.True(t, errors.Is(err, ErrEmptyValue))

	_, err = NewStudentID("not-a-uuid")
	assert.True(t, errors.Is(err, ErrInvalidID))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}
