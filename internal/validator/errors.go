package validator

import (
	"github.com/quizforge/assessment-engine/internal/errors"
)

// Use shared validation errors from errors package
type ValidationError = errors.ValidationError
type ValidationErrors = errors.ValidationErrors

// ToValidationErrors converts validator.ValidationErrors to our custom type
func ToValidationErrors(err error) error {
	if converted := errors.ToValidationErrors(err); len(converted) > 0 {
		return converted
	}
	return err
}
