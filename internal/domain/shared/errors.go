// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")

	// State errors
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency errors
	ErrOptimisticLock = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "homework", "achievement", "profile"
	Op      string // Operation that failed, e.g., "Create", "Merge"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Homework domain errors
var (
	ErrAssignmentNotFound = NewDomainError("homework", "Find", ErrNotFound, "assignment not found")
	ErrClassNotFound      = NewDomainError("homework", "FindClass", ErrNotFound, "class not found")
	ErrEmptyClassName     = NewDomainError("homework", "ValidateClass", ErrEmptyValue, "class name is required")
	ErrInvalidClassColor  = NewDomainError("homework", "ValidateClass", ErrInvalidInput, "unsupported class color")
	ErrClassNameTaken     = NewDomainError("homework", "SaveClass", ErrAlreadyExists, "a class with this name already exists")
	ErrEmptyPatch         = NewDomainError("homework", "Update", ErrEmptyValue, "no fields to update")
	ErrInvalidStatus      = NewDomainError("homework", "Validate", ErrInvalidInput, "invalid assignment status")
	ErrInvalidPriority    = NewDomainError("homework", "Validate", ErrInvalidInput, "invalid assignment priority")
	ErrEmptyTitle         = NewDomainError("homework", "Validate", ErrEmptyValue, "assignment title is required")
	ErrInvalidSortField   = NewDomainError("homework", "Query", ErrInvalidInput, "unsupported sort field")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrUnknownBadge        = NewDomainError("achievement", "Validate", ErrInvalidInput, "badge is not in the catalog")
	ErrInvalidCatalog      = NewDomainError("achievement", "LoadCatalog", ErrValidation, "invalid badge catalog")
)

// Profile domain errors
var (
	ErrProfileNotFound   = NewDomainError("profile", "Find", ErrNotFound, "learning profile not found")
	ErrProfileConflict   = NewDomainError("profile", "Save", ErrOptimisticLock, "learning profile was modified concurrently")
	ErrTurnAlreadyMerged = NewDomainError("profile", "Save", ErrAlreadyProcessed, "turn already merged into profile")
)

// Tutor domain errors
var (
	ErrConversationNotFound = NewDomainError("tutor", "Find", ErrNotFound, "conversation not found")
	ErrTurnAlreadyRecorded  = NewDomainError("tutor", "Append", ErrAlreadyProcessed, "turn already recorded")
	ErrUnknownStyle         = NewDomainError("tutor", "ParseStyle", ErrInvalidInput, "unknown teaching style")
	ErrEmptyMessage         = NewDomainError("tutor", "Append", ErrEmptyValue, "message content is required")
	ErrInvalidRole          = NewDomainError("tutor", "Append", ErrInvalidInput, "invalid message role")
)

// External service errors
var (
	ErrLLMUnavailable      = NewDomainError("llm", "Complete", ErrServiceUnavailable, "language model is unavailable")
	ErrLLMTimeout          = NewDomainError("llm", "Complete", ErrTimeout, "language model request timeout")
	ErrImportUnstructured  = NewDomainError("import", "Extract", ErrInvalidFormat, "could not extract structured assignments")
	ErrImportNoAssignments = NewDomainError("import", "Extract", ErrEmptyValue, "no assignments found in the images")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue)
}

// IsConflict checks if the error is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrOptimisticLock)
}
