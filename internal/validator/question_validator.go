package validator

import (
	"encoding/json"
	"fmt"

	"github.com/quizforge/assessment-engine/internal/models"
)

// QuestionValidator handles question-specific validation
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion validates a complete question object
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if question.Text == "" {
		return fmt.Errorf("question text is required")
	}

	if question.Points < 1 || question.Points > 100 {
		return fmt.Errorf("question points must be between 1 and 100")
	}

	return v.ValidateContent(question.Type, question.Content)
}

// ValidateBatch validates multiple questions
func (v *QuestionValidator) ValidateBatch(questions []*models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question batch cannot be empty")
	}

	for i, question := range questions {
		if err := v.ValidateQuestion(question); err != nil {
			return fmt.Errorf("validation failed for question %d: %w", i+1, err)
		}
	}

	return nil
}

// ValidateContent validates question content based on question type
func (v *QuestionValidator) ValidateContent(questionType models.QuestionType, contentBytes []byte) error {
	if len(contentBytes) == 0 {
		return fmt.Errorf("content cannot be empty")
	}

	switch questionType {
	case models.MultipleChoice:
		return v.validateChoiceContent(contentBytes, true)
	case models.SingleChoice:
		return v.validateChoiceContent(contentBytes, false)
	case models.TrueFalse:
		return v.validateTrueFalseContent(contentBytes)
	case models.FillBlank:
		return v.validateFillBlankContent(contentBytes)
	case models.Essay:
		return v.validateEssayContent(contentBytes)
	case models.Code:
		return v.validateCodeContent(contentBytes)
	case models.Matching:
		return v.validateMatchingContent(contentBytes)
	case models.Ordering:
		return v.validateOrderingContent(contentBytes)
	default:
		return fmt.Errorf("unsupported question type: %s", questionType)
	}
}

// Private validation methods for each question type

func (v *QuestionValidator) validateChoiceContent(contentBytes []byte, multipleCorrect bool) error {
	var content models.ChoiceContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid choice content: %w", err)
	}

	if len(content.Options) < 2 {
		return fmt.Errorf("must have at least 2 options")
	}

	if len(content.Options) > 10 {
		return fmt.Errorf("cannot have more than 10 options")
	}

	optionIDs := make(map[string]bool)
	correctCount := 0
	for _, option := range content.Options {
		if option.ID == "" || option.Text == "" {
			return fmt.Errorf("options must have both ID and text")
		}
		if optionIDs[option.ID] {
			return fmt.Errorf("duplicate option ID '%s'", option.ID)
		}
		optionIDs[option.ID] = true
		if option.Correct {
			correctCount++
		}
	}

	if correctCount == 0 {
		return fmt.Errorf("must have at least 1 correct option")
	}

	if !multipleCorrect && correctCount > 1 {
		return fmt.Errorf("single choice question cannot have more than 1 correct option")
	}

	return nil
}

func (v *QuestionValidator) validateTrueFalseContent(contentBytes []byte) error {
	var content models.TrueFalseContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid true/false content: %w", err)
	}
	return nil
}

func (v *QuestionValidator) validateFillBlankContent(contentBytes []byte) error {
	var content models.FillBlankContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid fill-in-blank content: %w", err)
	}

	if len(content.AcceptedAnswers) == 0 {
		return fmt.Errorf("must have at least 1 accepted answer")
	}

	for i, answer := range content.AcceptedAnswers {
		if answer == "" {
			return fmt.Errorf("accepted answer %d cannot be empty", i+1)
		}
	}

	return nil
}

func (v *QuestionValidator) validateEssayContent(contentBytes []byte) error {
	var content models.EssayContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid essay content: %w", err)
	}

	if content.MinWords != nil && *content.MinWords < 0 {
		return fmt.Errorf("minimum word count cannot be negative")
	}

	if content.MinWords != nil && content.MaxWords != nil && *content.MinWords > *content.MaxWords {
		return fmt.Errorf("minimum word count cannot be greater than maximum")
	}

	return nil
}

func (v *QuestionValidator) validateCodeContent(contentBytes []byte) error {
	var content models.CodeContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid code content: %w", err)
	}

	if content.Language == "" {
		return fmt.Errorf("language is required")
	}

	if content.ReferenceSolution == "" {
		return fmt.Errorf("reference solution is required")
	}

	if len(content.TestCases) == 0 {
		return fmt.Errorf("must have at least 1 test case")
	}

	return nil
}

func (v *QuestionValidator) validateMatchingContent(contentBytes []byte) error {
	var content models.MatchingContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid matching content: %w", err)
	}

	if len(content.LeftItems) < 2 {
		return fmt.Errorf("must have at least 2 left items")
	}

	if len(content.RightItems) < 2 {
		return fmt.Errorf("must have at least 2 right items")
	}

	if len(content.LeftItems) > 10 || len(content.RightItems) > 10 {
		return fmt.Errorf("cannot have more than 10 items on each side")
	}

	if len(content.CorrectPairs) == 0 {
		return fmt.Errorf("must have at least 1 correct pair")
	}

	leftIDs := make(map[string]bool)
	rightIDs := make(map[string]bool)

	for _, item := range content.LeftItems {
		if item.ID == "" || item.Text == "" {
			return fmt.Errorf("left items must have both ID and text")
		}
		leftIDs[item.ID] = true
	}

	for _, item := range content.RightItems {
		if item.ID == "" || item.Text == "" {
			return fmt.Errorf("right items must have both ID and text")
		}
		rightIDs[item.ID] = true
	}

	for _, pair := range content.CorrectPairs {
		if !leftIDs[pair.LeftID] {
			return fmt.Errorf("correct pair references non-existent left item: %s", pair.LeftID)
		}
		if !rightIDs[pair.RightID] {
			return fmt.Errorf("correct pair references non-existent right item: %s", pair.RightID)
		}
	}

	return nil
}

func (v *QuestionValidator) validateOrderingContent(contentBytes []byte) error {
	var content models.OrderingContent
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return fmt.Errorf("invalid ordering content: %w", err)
	}

	if len(content.Items) < 2 {
		return fmt.Errorf("must have at least 2 items")
	}

	if len(content.Items) > 10 {
		return fmt.Errorf("cannot have more than 10 items")
	}

	if len(content.CorrectOrder) != len(content.Items) {
		return fmt.Errorf("correct order must include all items exactly once")
	}

	itemIDs := make(map[string]bool)
	for _, item := range content.Items {
		if item.ID == "" || item.Text == "" {
			return fmt.Errorf("items must have both ID and text")
		}
		itemIDs[item.ID] = true
	}

	orderIDs := make(map[string]bool)
	for _, orderID := range content.CorrectOrder {
		if !itemIDs[orderID] {
			return fmt.Errorf("correct order references non-existent item: %s", orderID)
		}
		if orderIDs[orderID] {
			return fmt.Errorf("correct order contains duplicate item: %s", orderID)
		}
		orderIDs[orderID] = true
	}

	return nil
}
