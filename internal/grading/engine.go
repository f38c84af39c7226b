// Package grading implements the deterministic scoring of submitted
// answers. Grading is pure CPU work: it reads the question's answer key
// and the submitted payload and produces a result; all persistence
// (answer rows, question counters, analytics) is the caller's concern.
package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	apperrors "github.com/quizforge/assessment-engine/internal/errors"
	"github.com/quizforge/assessment-engine/internal/models"
)

// ManualReviewThreshold is the fraction of a question's points an
// externally graded answer must earn to be derived correct.
const ManualReviewThreshold = 0.6

// Result is the outcome of grading one answer.
type Result struct {
	Correct       bool
	PointsEarned  float64
	PendingReview bool
}

// Grade scores one submitted answer against its question. Choice,
// true/false, fill-blank, matching and ordering questions are all-or-
// nothing. Essay and code answers cannot be auto-graded and come back
// with PendingReview set; their points arrive later via ApplyManualScore.
//
// A malformed answer key aborts with DataIntegrityError; a malformed
// submission payload is a validation error against the caller.
func Grade(q *models.Question, response json.RawMessage) (Result, error) {
	content, err := q.DecodeContent()
	if err != nil {
		return Result{}, apperrors.NewDataIntegrityError("question", q.ID, err.Error())
	}

	// An unanswered question scores zero outright. This also keeps an
	// absent true/false payload from being read as a "false" answer.
	if len(response) == 0 {
		return Result{}, nil
	}

	switch q.Type {
	case models.MultipleChoice, models.SingleChoice:
		return gradeChoice(q, content.(*models.ChoiceContent), response)
	case models.TrueFalse:
		return gradeTrueFalse(q, content.(*models.TrueFalseContent), response)
	case models.FillBlank:
		return gradeFillBlank(q, content.(*models.FillBlankContent), response)
	case models.Essay, models.Code:
		// Not auto-gradable: points come from manual review.
		return Result{PendingReview: true}, nil
	case models.Matching:
		return gradeMatching(q, content.(*models.MatchingContent), response)
	case models.Ordering:
		return gradeOrdering(q, content.(*models.OrderingContent), response)
	default:
		return Result{}, apperrors.NewDataIntegrityError("question", q.ID,
			fmt.Sprintf("unsupported question type %q", q.Type))
	}
}

// ApplyManualScore derives a result from externally supplied points for
// an essay or code answer. Correctness is derived from the points
// against a fixed threshold, never from answer content.
func ApplyManualScore(q *models.Question, points float64) (Result, error) {
	if points < 0 || points > float64(q.Points) {
		return Result{}, apperrors.NewValidationError("points_earned",
			fmt.Sprintf("must be between 0 and %d", q.Points), points)
	}
	return Result{
		Correct:      points >= ManualReviewThreshold*float64(q.Points),
		PointsEarned: points,
	}, nil
}

// ScoreAttempt folds per-answer points into the normalized 0-100 score.
func ScoreAttempt(pointsEarned float64, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(pointsEarned / float64(totalPoints) * 100))
}

// ===== PER-TYPE GRADERS =====

func gradeChoice(q *models.Question, content *models.ChoiceContent, response json.RawMessage) (Result, error) {
	correct := content.CorrectOptionIDs()
	if len(correct) == 0 {
		return Result{}, apperrors.NewDataIntegrityError("question", q.ID, "no option is flagged correct")
	}

	var answer models.ChoiceAnswer
	if err := decodeResponse(response, &answer); err != nil {
		return Result{}, err
	}

	// Correct iff the selected set equals the correct set exactly.
	// No partial credit.
	if len(answer.SelectedOptions) != len(correct) {
		return Result{}, nil
	}
	seen := make(map[string]bool, len(answer.SelectedOptions))
	for _, id := range answer.SelectedOptions {
		if seen[id] {
			return Result{}, nil // duplicate selection can never match the set
		}
		seen[id] = true
		if !correct[id] {
			return Result{}, nil
		}
	}
	return fullPoints(q), nil
}

func gradeTrueFalse(q *models.Question, content *models.TrueFalseContent, response json.RawMessage) (Result, error) {
	var answer models.TrueFalseAnswer
	if err := decodeResponse(response, &answer); err != nil {
		return Result{}, err
	}
	if answer.Answer != content.Answer {
		return Result{}, nil
	}
	return fullPoints(q), nil
}

func gradeFillBlank(q *models.Question, content *models.FillBlankContent, response json.RawMessage) (Result, error) {
	if len(content.AcceptedAnswers) == 0 {
		return Result{}, apperrors.NewDataIntegrityError("question", q.ID, "no accepted answers in key")
	}

	var answer models.FillBlankAnswer
	if err := decodeResponse(response, &answer); err != nil {
		return Result{}, err
	}

	submitted := normalizeText(answer.Text)
	for _, accepted := range content.AcceptedAnswers {
		if submitted == normalizeText(accepted) {
			return fullPoints(q), nil
		}
	}
	return Result{}, nil
}

func gradeMatching(q *models.Question, content *models.MatchingContent, response json.RawMessage) (Result, error) {
	if len(content.CorrectPairs) == 0 {
		return Result{}, apperrors.NewDataIntegrityError("question", q.ID, "no correct pairs in key")
	}

	var answer models.MatchingAnswer
	if err := decodeResponse(response, &answer); err != nil {
		return Result{}, err
	}

	// Exact pair-set equality, no partial credit.
	if len(answer.Pairs) != len(content.CorrectPairs) {
		return Result{}, nil
	}
	key := make(map[string]string, len(content.CorrectPairs))
	for _, p := range content.CorrectPairs {
		key[p.LeftID] = p.RightID
	}
	seen := make(map[string]bool, len(answer.Pairs))
	for _, p := range answer.Pairs {
		if seen[p.LeftID] {
			return Result{}, nil
		}
		seen[p.LeftID] = true
		if key[p.LeftID] != p.RightID {
			return Result{}, nil
		}
	}
	return fullPoints(q), nil
}

func gradeOrdering(q *models.Question, content *models.OrderingContent, response json.RawMessage) (Result, error) {
	if len(content.CorrectOrder) == 0 {
		return Result{}, apperrors.NewDataIntegrityError("question", q.ID, "no correct order in key")
	}

	var answer models.OrderingAnswer
	if err := decodeResponse(response, &answer); err != nil {
		return Result{}, err
	}

	// Exact positional equality, no partial credit.
	if len(answer.Order) != len(content.CorrectOrder) {
		return Result{}, nil
	}
	for i, id := range answer.Order {
		if id != content.CorrectOrder[i] {
			return Result{}, nil
		}
	}
	return fullPoints(q), nil
}

// ===== HELPERS =====

func fullPoints(q *models.Question) Result {
	return Result{Correct: true, PointsEarned: float64(q.Points)}
}

func decodeResponse(response json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(response, dest); err != nil {
		return apperrors.NewValidationError("response", "malformed answer payload", string(response))
	}
	return nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
