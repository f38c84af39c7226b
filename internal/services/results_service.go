package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizforge/assessment-engine/internal/auth"
	"github.com/quizforge/assessment-engine/internal/cache"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
)

const analyticsCacheTTL = 5 * time.Minute

type resultsService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	authorizer auth.Authorizer
	cache      cache.CacheService
}

func NewResultsService(
	repo repositories.Repository,
	logger *slog.Logger,
	authorizer auth.Authorizer,
	cacheService cache.CacheService,
) ResultsService {
	return &resultsService{
		repo:       repo,
		logger:     logger,
		authorizer: authorizer,
		cache:      cacheService,
	}
}

// GetAttemptResult returns one attempt's outcome. Learners see their own
// attempts; quiz managers see every attempt. Answer details follow the
// quiz's result-visibility settings for learners and are always visible
// to managers.
func (s *resultsService) GetAttemptResult(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	isManager := false
	if attempt.LearnerID != userID {
		isManager, err = s.authorizer.CanManage(ctx, userID, quiz)
		if err != nil {
			return nil, fmt.Errorf("permission check failed: %w", err)
		}
		if !isManager {
			return nil, NewPolicyError(userID, attemptID, "attempt", "view", "attempt belongs to another learner")
		}
	}

	showAnswers := isManager || quiz.Settings.ShowResults
	return buildAttemptResult(attempt, showAnswers), nil
}

// GetLearnerResults summarizes one learner's history against a quiz:
// their best finalized attempt, their most recent one and the total
// attempt count. A history with no finalized attempt yields
// ErrNoSubmissions.
func (s *resultsService) GetLearnerResults(ctx context.Context, quizID uint, learnerID string) (*LearnerResults, error) {
	attempts, err := s.repo.Attempt().GetByLearner(ctx, quizID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	var best, recent *models.QuizAttempt
	for _, a := range attempts {
		if !a.Status.IsFinalized() {
			continue
		}
		if best == nil || a.Score > best.Score {
			best = a
		}
		if recent == nil || a.AttemptNumber > recent.AttemptNumber {
			recent = a
		}
	}
	if best == nil {
		return nil, ErrNoSubmissions
	}

	return &LearnerResults{
		Best:       buildAttemptResult(best, false),
		MostRecent: buildAttemptResult(recent, false),
		Attempts:   len(attempts),
	}, nil
}

// GetQuizAnalytics returns the quiz's summary row plus per-question
// statistics, read through a short-lived cache. Only quiz managers may
// read analytics.
func (s *resultsService) GetQuizAnalytics(ctx context.Context, quizID uint, userID string) (*QuizAnalyticsResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	canManage, err := s.authorizer.CanManage(ctx, userID, quiz)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !canManage {
		return nil, NewPolicyError(userID, quizID, "quiz", "view_analytics", "insufficient permissions")
	}

	var cached QuizAnalyticsResponse
	if err := s.cache.Get(ctx, analyticsCacheKey(quizID), &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Analytics cache read failed", "quiz_id", quizID, "error", err)
	}

	summary, err := s.repo.Analytics().GetByQuiz(ctx, quizID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get analytics: %w", err)
		}
		// No attempts recorded yet: an all-zero summary.
		summary = &models.QuizAnalytics{QuizID: quizID, LastComputedAt: time.Now()}
	}

	questions, err := s.repo.Question().GetByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	stats := make([]repositories.QuestionStats, len(questions))
	for i, q := range questions {
		stats[i] = repositories.QuestionStats{
			QuestionID:      q.ID,
			TotalAttempts:   q.TotalAttempts,
			CorrectAttempts: q.CorrectAttempts,
			Accuracy:        q.Accuracy(),
			AvgResponseTime: q.AvgResponseTime,
			Difficulty:      q.Difficulty,
		}
	}

	response := &QuizAnalyticsResponse{QuizAnalytics: summary, Questions: stats}
	if err := s.cache.Set(ctx, analyticsCacheKey(quizID), response, analyticsCacheTTL); err != nil {
		s.logger.Warn("Analytics cache write failed", "quiz_id", quizID, "error", err)
	}
	return response, nil
}

func buildAttemptResult(attempt *models.QuizAttempt, includeAnswers bool) *AttemptResult {
	result := &AttemptResult{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		LearnerID:     attempt.LearnerID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		TimeSpent:     attempt.TimeSpent,
		SubmittedAt:   attempt.SubmittedAt,
	}
	// A held attempt carries no authoritative score yet.
	if attempt.Status.IsFinalized() {
		result.RawPoints = attempt.RawPoints
		result.MaxPoints = attempt.MaxPoints
		result.Score = attempt.Score
		result.Passed = attempt.Passed
	}
	if includeAnswers {
		answers := make([]*models.AttemptAnswer, len(attempt.Answers))
		for i := range attempt.Answers {
			answers[i] = &attempt.Answers[i]
		}
		result.Answers = answerDetails(answers)
	}
	return result
}
