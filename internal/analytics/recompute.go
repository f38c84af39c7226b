// Package analytics derives the per-quiz summary statistics from the
// full attempt set. Recompute is a pure fold, O(attempts) per call; the
// Recomputer interface leaves room for an incremental implementation
// with identical observable results.
package analytics

import (
	"time"

	"github.com/quizforge/assessment-engine/internal/models"
)

// Recomputer produces a quiz's analytics summary from its attempts.
type Recomputer interface {
	Recompute(quizID uint, passingScore int, attempts []*models.QuizAttempt) models.QuizAnalytics
}

// FullFold recomputes every statistic from scratch on each call.
type FullFold struct{}

func NewRecomputer() Recomputer {
	return FullFold{}
}

// Recompute folds over all attempts of a quiz.
//
// Score statistics and pass rate cover finalized attempts only
// (submitted and auto_submitted). The abandonment rate counts abandoned
// attempts against every attempt regardless of status. Attempts held in
// awaiting_review carry no authoritative score yet and contribute only
// to the denominators.
func (FullFold) Recompute(quizID uint, passingScore int, attempts []*models.QuizAttempt) models.QuizAnalytics {
	result := models.QuizAnalytics{
		QuizID:         quizID,
		TotalAttempts:  len(attempts),
		LastComputedAt: time.Now(),
	}

	var (
		scoreSum    float64
		durationSum float64
		passed      int
	)

	for _, attempt := range attempts {
		switch attempt.Status {
		case models.AttemptAbandoned:
			result.AbandonedAttempts++
			continue
		case models.AttemptAwaitingReview:
			result.PendingReview++
			continue
		case models.AttemptInProgress:
			continue
		}

		score := float64(attempt.Score)
		if result.CompletedAttempts == 0 {
			result.HighestScore = score
			result.LowestScore = score
		} else {
			if score > result.HighestScore {
				result.HighestScore = score
			}
			if score < result.LowestScore {
				result.LowestScore = score
			}
		}
		result.CompletedAttempts++
		scoreSum += score
		durationSum += float64(attempt.TimeSpent)
		if attempt.Score >= passingScore {
			passed++
		}
	}

	if result.CompletedAttempts > 0 {
		n := float64(result.CompletedAttempts)
		result.AverageScore = scoreSum / n
		result.PassRate = float64(passed) / n
		result.AverageDuration = durationSum / n / 60 // seconds to minutes
	}
	if result.TotalAttempts > 0 {
		result.AbandonmentRate = float64(result.AbandonedAttempts) / float64(result.TotalAttempts)
	}

	return result
}

// QuestionDifficulty averages per-question difficulty into the quiz's
// overall rating. Questions nobody has answered yet are skipped.
func QuestionDifficulty(questions []models.Question) float64 {
	var sum float64
	var counted int
	for i := range questions {
		if questions[i].TotalAttempts == 0 {
			continue
		}
		sum += questions[i].Difficulty
		counted++
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}
