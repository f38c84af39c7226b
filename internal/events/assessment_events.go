package events

import "time"

// EventType represents different types of assessment events
type EventType string

const (
	// Quiz lifecycle events
	EventQuizPublished EventType = "quiz.published"
	EventQuizArchived  EventType = "quiz.archived"

	// Attempt events
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptGraded    EventType = "attempt.graded"
	EventAttemptExpired   EventType = "attempt.expired"
	EventAttemptAbandoned EventType = "attempt.abandoned"

	// Grading events
	EventManualReviewRequired EventType = "grading.manual_required"

	// Proctoring events
	EventProctoringFlag EventType = "proctoring.flag"
)

// AssessmentEvent is the envelope for all published events.
type AssessmentEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Quiz lifecycle payloads

type QuizPublishedEvent struct {
	QuizID      uint      `json:"quiz_id"`
	QuizTitle   string    `json:"quiz_title"`
	CourseID    *string   `json:"course_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatorID   string    `json:"creator_id"`
}

// Attempt payloads

type AttemptStartedEvent struct {
	AttemptID     uint      `json:"attempt_id"`
	QuizID        uint      `json:"quiz_id"`
	QuizTitle     string    `json:"quiz_title"`
	LearnerID     string    `json:"learner_id"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
	TimeLimit     *int      `json:"time_limit,omitempty"` // minutes
}

type AttemptGradedEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	QuizID     uint      `json:"quiz_id"`
	QuizTitle  string    `json:"quiz_title"`
	LearnerID  string    `json:"learner_id"`
	GradedAt   time.Time `json:"graded_at"`
	RawPoints  float64   `json:"raw_points"`
	MaxPoints  int       `json:"max_points"`
	Score      int       `json:"score"`
	Passed     bool      `json:"passed"`
	AutoScored bool      `json:"auto_scored"` // false when finalized by manual review
}

type AttemptAbandonedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	QuizID      uint      `json:"quiz_id"`
	LearnerID   string    `json:"learner_id"`
	AbandonedAt time.Time `json:"abandoned_at"`
}

// Grading payloads

type ManualReviewRequiredEvent struct {
	AttemptID      uint   `json:"attempt_id"`
	QuizID         uint   `json:"quiz_id"`
	QuizTitle      string `json:"quiz_title"`
	LearnerID      string `json:"learner_id"`
	PendingAnswers int    `json:"pending_answers"`
}

// Proctoring payloads

type ProctoringFlagEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	QuizID     uint      `json:"quiz_id"`
	LearnerID  string    `json:"learner_id"`
	Kind       string    `json:"kind"`
	Severity   int       `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`
}
