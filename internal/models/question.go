package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	SingleChoice   QuestionType = "single_choice"
	TrueFalse      QuestionType = "true_false"
	FillBlank      QuestionType = "fill_blank"
	Essay          QuestionType = "essay"
	Code           QuestionType = "code"
	Matching       QuestionType = "matching"
	Ordering       QuestionType = "ordering"
)

// AllQuestionTypes lists every supported type; grading dispatch and
// validation must cover each one.
var AllQuestionTypes = []QuestionType{
	MultipleChoice, SingleChoice, TrueFalse, FillBlank,
	Essay, Code, Matching, Ordering,
}

// Question is one gradable unit of a quiz. Content carries the
// type-specific answer key as JSONB; exactly one content shape is valid
// for each Type and the grading engine rejects mismatches.
type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"not null;type:text" validate:"required,min=1"`
	Type   QuestionType `json:"type" gorm:"not null;index" validate:"required,question_type"`
	Points int          `json:"points" gorm:"not null" validate:"required,min=1,max=100"`
	Order  int          `json:"order" gorm:"not null;default:0"`

	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	// Rolling per-question analytics, updated in the same transaction
	// as attempt grading.
	TotalAttempts   int     `json:"total_attempts" gorm:"default:0"`
	CorrectAttempts int     `json:"correct_attempts" gorm:"default:0"`
	AvgResponseTime float64 `json:"avg_response_time" gorm:"default:0"` // seconds
	Difficulty      float64 `json:"difficulty" gorm:"default:0"`        // 1 - accuracy

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// RecordGrading folds one graded response into the question counters.
func (q *Question) RecordGrading(correct bool, timeSpent int) {
	prev := float64(q.TotalAttempts)
	q.TotalAttempts++
	if correct {
		q.CorrectAttempts++
	}
	q.AvgResponseTime = (q.AvgResponseTime*prev + float64(timeSpent)) / float64(q.TotalAttempts)
	q.Difficulty = 1 - float64(q.CorrectAttempts)/float64(q.TotalAttempts)
}

// Accuracy returns the fraction of graded responses that were correct.
func (q *Question) Accuracy() float64 {
	if q.TotalAttempts == 0 {
		return 0
	}
	return float64(q.CorrectAttempts) / float64(q.TotalAttempts)
}

// IsAutoGradable reports whether the grading engine can score this type
// without human review.
func (q *Question) IsAutoGradable() bool {
	return q.Type != Essay && q.Type != Code
}

// ===== TYPE-SPECIFIC CONTENT =====

type ChoiceOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
	Order   int    `json:"order"`
}

// ChoiceContent is shared by multiple_choice and single_choice.
type ChoiceContent struct {
	Options []ChoiceOption `json:"options"`
}

// CorrectOptionIDs returns the set of option IDs flagged correct.
func (c *ChoiceContent) CorrectOptionIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, opt := range c.Options {
		if opt.Correct {
			ids[opt.ID] = true
		}
	}
	return ids
}

type TrueFalseContent struct {
	Answer      bool    `json:"answer"`
	Explanation *string `json:"explanation,omitempty"`
}

type FillBlankContent struct {
	AcceptedAnswers []string `json:"accepted_answers"`
}

type EssayContent struct {
	MinWords *int    `json:"min_words,omitempty"`
	MaxWords *int    `json:"max_words,omitempty"`
	Rubric   *string `json:"rubric,omitempty"`
}

type CodeTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
}

type CodeContent struct {
	Language          string         `json:"language"`
	StarterCode       *string        `json:"starter_code,omitempty"`
	ReferenceSolution string         `json:"reference_solution"`
	TestCases         []CodeTestCase `json:"test_cases"`
}

type MatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MatchPair struct {
	LeftID  string `json:"left_id"`
	RightID string `json:"right_id"`
}

type MatchingContent struct {
	LeftItems    []MatchItem `json:"left_items"`
	RightItems   []MatchItem `json:"right_items"`
	CorrectPairs []MatchPair `json:"correct_pairs"`
}

type OrderItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type OrderingContent struct {
	Items        []OrderItem `json:"items"`
	CorrectOrder []string    `json:"correct_order"`
}

// DecodeContent unmarshals the JSONB content into the struct matching
// the question type. A content blob that does not decode is a data
// integrity problem, not a grading result.
func (q *Question) DecodeContent() (interface{}, error) {
	if len(q.Content) == 0 {
		return nil, fmt.Errorf("question %d has no content", q.ID)
	}

	var dest interface{}
	switch q.Type {
	case MultipleChoice, SingleChoice:
		dest = &ChoiceContent{}
	case TrueFalse:
		dest = &TrueFalseContent{}
	case FillBlank:
		dest = &FillBlankContent{}
	case Essay:
		dest = &EssayContent{}
	case Code:
		dest = &CodeContent{}
	case Matching:
		dest = &MatchingContent{}
	case Ordering:
		dest = &OrderingContent{}
	default:
		return nil, fmt.Errorf("unsupported question type: %s", q.Type)
	}

	if err := json.Unmarshal(q.Content, dest); err != nil {
		return nil, fmt.Errorf("failed to decode %s content for question %d: %w", q.Type, q.ID, err)
	}
	return dest, nil
}
