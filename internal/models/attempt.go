package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress     AttemptStatus = "in_progress"
	AttemptAwaitingReview AttemptStatus = "awaiting_review"
	AttemptSubmitted      AttemptStatus = "submitted"
	AttemptAutoSubmitted  AttemptStatus = "auto_submitted"
	AttemptAbandoned      AttemptStatus = "abandoned"
)

// IsTerminal reports whether no further answers or grading runs are
// allowed for an attempt in this status. awaiting_review is terminal for
// the learner but still accepts manual grades.
func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptInProgress
}

// IsFinalized reports whether the attempt carries an authoritative score
// and participates in score analytics.
func (s AttemptStatus) IsFinalized() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted
}

const (
	AttemptEndReasonSubmitted = "submitted"
	AttemptEndReasonTimeout   = "time_out"
	AttemptEndReasonAbandoned = "abandoned"
)

// QuizAttempt is one learner's timed session against a quiz. Attempts
// are stored separately from the quiz row, keyed by
// (quiz_id, learner_id, attempt_number).
type QuizAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	QuizID        uint          `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_quiz_learner_attempt"`
	LearnerID     string        `json:"learner_id" gorm:"not null;size:255;index;uniqueIndex:idx_quiz_learner_attempt"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_quiz_learner_attempt"`
	Status        AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   time.Time  `json:"started_at"`
	EndTime     *time.Time `json:"end_time"` // hard deadline when a time limit applies
	SubmittedAt *time.Time `json:"submitted_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	// Scoring
	RawPoints float64 `json:"raw_points"`
	MaxPoints int     `json:"max_points"`
	Score     int     `json:"score"` // 0-100 normalized percentage
	Passed    bool    `json:"passed"`

	EndReason *string `json:"end_reason" gorm:"size:50"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers          []AttemptAnswer   `json:"answers" gorm:"foreignKey:AttemptID"`
	ProctoringEvents []ProctoringEvent `json:"proctoring_events" gorm:"foreignKey:AttemptID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// HasPendingReview reports whether any answer still awaits manual grading.
func (a *QuizAttempt) HasPendingReview() bool {
	for i := range a.Answers {
		if a.Answers[i].PendingReview {
			return true
		}
	}
	return false
}

// AttemptAnswer records one submitted response and its grading outcome.
// Response is polymorphic on the question type, stored as JSONB.
type AttemptAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	Response datatypes.JSON `json:"response" gorm:"type:jsonb"`

	// Grading outcome. IsCorrect stays nil while an essay/code answer
	// awaits manual review; once points are supplied correctness is
	// derived from them, never from content.
	IsCorrect     *bool      `json:"is_correct"`
	PointsEarned  float64    `json:"points_earned"`
	PendingReview bool       `json:"pending_review"`
	GradedBy      *string    `json:"graded_by" gorm:"size:255"`
	GradedAt      *time.Time `json:"graded_at"`
	Feedback      *string    `json:"feedback" gorm:"type:text"`

	TimeSpent int `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// ===== SUBMITTED ANSWER PAYLOADS =====

// ChoiceAnswer is used for both multiple_choice and single_choice.
type ChoiceAnswer struct {
	SelectedOptions []string `json:"selected_options"`
}

type TrueFalseAnswer struct {
	Answer bool `json:"answer"`
}

type FillBlankAnswer struct {
	Text string `json:"text"`
}

type EssayAnswer struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

type CodeAnswer struct {
	Language   string `json:"language"`
	SourceCode string `json:"source_code"`
}

type MatchingAnswer struct {
	Pairs []MatchPair `json:"pairs"`
}

type OrderingAnswer struct {
	Order []string `json:"order"`
}
