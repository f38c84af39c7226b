package models

import "time"

// QuizAnalytics is the per-quiz summary row, recomputed from the attempt
// set after every terminal transition and persisted in the same
// transaction as the attempt change.
type QuizAnalytics struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	QuizID uint `json:"quiz_id" gorm:"not null;uniqueIndex"`

	// Attempt counts
	TotalAttempts     int `json:"total_attempts"` // every attempt regardless of status
	CompletedAttempts int `json:"completed_attempts"`
	AbandonedAttempts int `json:"abandoned_attempts"`
	PendingReview     int `json:"pending_review"`

	// Score statistics over finalized attempts
	AverageScore float64 `json:"average_score"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`

	// Rates
	PassRate        float64 `json:"pass_rate"`        // passed / finalized
	AbandonmentRate float64 `json:"abandonment_rate"` // abandoned / total

	// Timing
	AverageDuration float64 `json:"average_duration"` // minutes

	// Aggregate difficulty, mean of per-question difficulty scores.
	DifficultyRating float64 `json:"difficulty_rating"`

	LastComputedAt time.Time `json:"last_computed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (QuizAnalytics) TableName() string {
	return "quiz_analytics"
}
