package services

import (
	"errors"
	"fmt"

	apperrors "github.com/quizforge/assessment-engine/internal/errors"
	"github.com/quizforge/assessment-engine/internal/repositories"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Quiz specific errors
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNotPublished = errors.New("quiz is not published")
	ErrQuizArchived     = errors.New("quiz is archived")
	ErrQuizNotDraft     = errors.New("quiz is not in draft status")
	ErrQuizLocked       = errors.New("quiz has graded attempts - answer keys and points cannot change")

	// Question specific errors
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionInvalidType = errors.New("invalid question type")
	ErrUnknownQuestion     = errors.New("answer references a question not in this quiz")

	// Attempt specific errors
	ErrAttemptNotFound          = errors.New("attempt not found")
	ErrAttemptNotInProgress     = errors.New("attempt is not in progress")
	ErrAttemptAlreadyInProgress = errors.New("an attempt is already in progress for this quiz")
	ErrAttemptLimitExceeded     = errors.New("maximum attempts exceeded")
	ErrRetakeNotAllowed         = errors.New("retakes are not allowed for this quiz")
	ErrAttemptNotPendingReview  = errors.New("attempt has no answers awaiting review")

	// Results
	ErrNoSubmissions = errors.New("no submitted attempts found")

	// Concurrency
	ErrConcurrencyConflict = errors.New("concurrent modification detected - retry the operation")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors
type DataIntegrityError = apperrors.DataIntegrityError

// StateConflictError marks an operation invalid for the entity's current
// lifecycle state.
type StateConflictError struct {
	Entity   string `json:"entity"`
	ID       uint   `json:"id"`
	State    string `json:"state"`
	Action   string `json:"action"`
	Expected string `json:"expected,omitempty"`
}

func (e *StateConflictError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("cannot %s %s %d in state %q (requires %s)", e.Action, e.Entity, e.ID, e.State, e.Expected)
	}
	return fmt.Sprintf("cannot %s %s %d in state %q", e.Action, e.Entity, e.ID, e.State)
}

func NewStateConflictError(entity string, id uint, state, action string) *StateConflictError {
	return &StateConflictError{Entity: entity, ID: id, State: state, Action: action}
}

// PolicyError marks an authorization or ownership denial.
type PolicyError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PolicyError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func NewPolicyError(userID string, resourceID uint, resource, action, reason string) *PolicyError {
	return &PolicyError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// NewDataIntegrityError creates a data integrity error using the shared type
func NewDataIntegrityError(entity string, id uint, reason string) *DataIntegrityError {
	return apperrors.NewDataIntegrityError(entity, id, reason)
}

// ===== ERROR CLASSIFICATION =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrNoSubmissions) ||
		repositories.IsNotFoundError(err)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *ValidationError
	return errors.As(err, &single)
}

// IsStateConflict checks if error represents a lifecycle conflict
func IsStateConflict(err error) bool {
	var sce *StateConflictError
	return errors.As(err, &sce) ||
		errors.Is(err, ErrAttemptNotInProgress) ||
		errors.Is(err, ErrAttemptAlreadyInProgress) ||
		errors.Is(err, ErrAttemptLimitExceeded) ||
		errors.Is(err, ErrRetakeNotAllowed) ||
		errors.Is(err, ErrAttemptNotPendingReview) ||
		errors.Is(err, ErrQuizNotPublished) ||
		errors.Is(err, ErrQuizArchived) ||
		errors.Is(err, ErrQuizNotDraft) ||
		errors.Is(err, ErrQuizLocked)
}

// IsPolicy checks if error represents an authorization denial
func IsPolicy(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}

// IsConcurrencyConflict checks if error represents a stale aggregate write
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) ||
		repositories.IsVersionConflict(err)
}

// IsDataIntegrity checks if error represents malformed stored data
func IsDataIntegrity(err error) bool {
	var die *DataIntegrityError
	return errors.As(err, &die)
}
