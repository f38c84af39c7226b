package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/quizforge/assessment-engine/internal/models"
)

// Validator combines struct-tag validation with question content
// validation.
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// Question returns the question validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("quiz_type", validateQuizType)
	validate.RegisterValidation("attempt_status", validateAttemptStatus)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validateQuestionType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, validType := range models.AllQuestionTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateQuizType(fl validator.FieldLevel) bool {
	validTypes := []models.QuizType{
		models.QuizTypePractice,
		models.QuizTypeAssessment,
		models.QuizTypeFinal,
		models.QuizTypeCertification,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateAttemptStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.AttemptStatus{
		models.AttemptInProgress,
		models.AttemptAwaitingReview,
		models.AttemptSubmitted,
		models.AttemptAutoSubmitted,
		models.AttemptAbandoned,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}
