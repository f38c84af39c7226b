package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizforge/assessment-engine/internal/analytics"
	"github.com/quizforge/assessment-engine/internal/auth"
	"github.com/quizforge/assessment-engine/internal/cache"
	"github.com/quizforge/assessment-engine/internal/events"
	"github.com/quizforge/assessment-engine/internal/grading"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/quizforge/assessment-engine/internal/validator"
	"gorm.io/datatypes"
)

type attemptService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	validator  *validator.Validator
	publisher  events.EventPublisher
	authorizer auth.Authorizer
	cache      cache.CacheService
	recomputer analytics.Recomputer
}

func NewAttemptService(
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	authorizer auth.Authorizer,
	cacheService cache.CacheService,
) AttemptService {
	return &attemptService{
		repo:       repo,
		logger:     logger,
		validator:  v,
		publisher:  publisher,
		authorizer: authorizer,
		cache:      cacheService,
		recomputer: analytics.NewRecomputer(),
	}
}

// ===== LIFECYCLE =====

// Start opens a new attempt against a published quiz. The attempt
// ceiling, the retake policy and the one-active-attempt rule are all
// enforced here; attempt numbers are sequential per (quiz, learner).
func (s *attemptService) Start(ctx context.Context, quizID uint, learnerID string) (*StartAttemptResponse, error) {
	s.logger.Info("Starting attempt", "quiz_id", quizID, "learner_id", learnerID)

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.Status != models.QuizStatusPublished {
		return nil, ErrQuizNotPublished
	}

	if _, err := s.repo.Attempt().GetActive(ctx, quizID, learnerID); err == nil {
		return nil, ErrAttemptAlreadyInProgress
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}

	count, err := s.repo.Attempt().CountByLearner(ctx, quizID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if count >= quiz.Settings.MaxAttempts {
		return nil, ErrAttemptLimitExceeded
	}
	if count > 0 && !quiz.Settings.AllowRetake {
		return nil, ErrRetakeNotAllowed
	}

	now := time.Now()
	attempt := &models.QuizAttempt{
		QuizID:        quizID,
		LearnerID:     learnerID,
		AttemptNumber: count + 1,
		Status:        models.AttemptInProgress,
		StartedAt:     now,
		MaxPoints:     quiz.TotalPoints,
	}
	if quiz.Settings.TimeLimit > 0 {
		deadline := now.Add(time.Duration(quiz.Settings.TimeLimit) * time.Minute)
		attempt.EndTime = &deadline
	}

	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		// A racing start for the same learner lands on the same
		// (quiz, learner, attempt_number) triple; the unique index
		// decides the winner.
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrAttemptAlreadyInProgress
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	questions, err := learnerQuestions(quiz.Questions)
	if err != nil {
		return nil, err
	}

	var timeLimit *int
	if quiz.Settings.TimeLimit > 0 {
		timeLimit = &quiz.Settings.TimeLimit
	}
	s.publishEvent(ctx, events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:     attempt.ID,
		QuizID:        quiz.ID,
		QuizTitle:     quiz.Title,
		LearnerID:     learnerID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     now,
		TimeLimit:     timeLimit,
	}))

	s.logger.Info("Attempt started", "attempt_id", attempt.ID, "attempt_number", attempt.AttemptNumber)
	return &StartAttemptResponse{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     attempt.StartedAt,
		EndTime:       attempt.EndTime,
		Questions:     questions,
	}, nil
}

// Submit grades the learner's answers and finalizes the attempt. When
// every answer is auto-gradable the attempt lands in submitted; if any
// essay or code answer is held for review it lands in awaiting_review
// and carries no authoritative score yet.
//
// Everything the commit depends on is reloaded inside the transaction
// and the quiz version is bumped, so a submit racing an expiry run
// loses with a state conflict and two submits against the same quiz
// never grade over each other's question counters.
func (s *attemptService) Submit(ctx context.Context, req *SubmitAttemptRequest, learnerID string) (*SubmitResult, error) {
	s.logger.Info("Submitting attempt", "attempt_id", req.AttemptID, "learner_id", learnerID)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.getOwnedAttempt(ctx, req.AttemptID, learnerID); err != nil {
		return nil, err
	}

	var (
		quiz    *models.Quiz
		attempt *models.QuizAttempt
		answers []*models.AttemptAnswer
	)
	err := withConflictRetry(ctx, func() error {
		return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
			var err error
			attempt, err = tx.Attempt().GetByID(ctx, req.AttemptID)
			if err != nil {
				return fmt.Errorf("failed to reload attempt: %w", err)
			}
			if attempt.Status != models.AttemptInProgress {
				return NewStateConflictError("attempt", attempt.ID, string(attempt.Status), "submit")
			}

			quiz, err = claimQuiz(ctx, tx, attempt.QuizID)
			if err != nil {
				return err
			}

			byID := questionIndex(quiz.Questions)
			answers = make([]*models.AttemptAnswer, 0, len(req.Answers))
			graded := make(map[uint]grading.Result, len(req.Answers))
			for _, sub := range req.Answers {
				q, ok := byID[sub.QuestionID]
				if !ok {
					return ErrUnknownQuestion
				}
				result, err := grading.Grade(q, sub.Response)
				if err != nil {
					return err
				}
				answer := &models.AttemptAnswer{
					AttemptID:     attempt.ID,
					QuestionID:    sub.QuestionID,
					Response:      datatypes.JSON(sub.Response),
					PointsEarned:  result.PointsEarned,
					PendingReview: result.PendingReview,
					TimeSpent:     sub.TimeSpent,
				}
				if !result.PendingReview {
					correct := result.Correct
					answer.IsCorrect = &correct
				}
				answers = append(answers, answer)
				graded[sub.QuestionID] = result
			}

			now := time.Now()
			s.fillScoring(attempt, quiz, answers, now, models.AttemptEndReasonSubmitted)
			if req.TimeSpent != nil {
				attempt.TimeSpent = *req.TimeSpent
			}
			attempt.Answers = make([]models.AttemptAnswer, len(answers))
			for i := range answers {
				attempt.Answers[i] = *answers[i]
			}

			if err := tx.Attempt().SaveAnswers(ctx, answers); err != nil {
				return fmt.Errorf("failed to save answers: %w", err)
			}
			if err := tx.Attempt().Update(ctx, attempt); err != nil {
				return fmt.Errorf("failed to update attempt: %w", err)
			}

			for qid, result := range graded {
				if result.PendingReview {
					continue
				}
				q := byID[qid]
				q.RecordGrading(result.Correct, answerTime(answers, qid))
				if err := tx.Question().UpdateStats(ctx, q); err != nil {
					return fmt.Errorf("failed to update question stats: %w", err)
				}
			}

			return s.recomputeAnalytics(ctx, tx, quiz)
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAnalyticsCache(ctx, quiz.ID)
	s.emitGradingEvents(ctx, quiz, attempt, true)

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID, "status", attempt.Status, "score", attempt.Score)
	return s.submitResult(quiz, attempt, answers), nil
}

// Expire force-finalizes an attempt whose deadline has passed, grading
// whatever answers were saved. Invoked by the expiry sweeper, not by
// learners.
func (s *attemptService) Expire(ctx context.Context, attemptID uint) (*SubmitResult, error) {
	s.logger.Info("Expiring attempt", "attempt_id", attemptID)

	existing, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if existing.Status != models.AttemptInProgress {
		return nil, NewStateConflictError("attempt", existing.ID, string(existing.Status), "expire")
	}
	if existing.EndTime == nil || time.Now().Before(*existing.EndTime) {
		return nil, NewStateConflictError("attempt", existing.ID, string(existing.Status), "expire")
	}

	var (
		quiz    *models.Quiz
		attempt *models.QuizAttempt
		answers []*models.AttemptAnswer
	)
	err = withConflictRetry(ctx, func() error {
		return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
			var err error
			attempt, err = tx.Attempt().GetByIDWithAnswers(ctx, attemptID)
			if err != nil {
				return fmt.Errorf("failed to reload attempt: %w", err)
			}
			if attempt.Status != models.AttemptInProgress {
				return NewStateConflictError("attempt", attempt.ID, string(attempt.Status), "expire")
			}

			quiz, err = claimQuiz(ctx, tx, attempt.QuizID)
			if err != nil {
				return err
			}

			byID := questionIndex(quiz.Questions)
			answers = make([]*models.AttemptAnswer, 0, len(attempt.Answers))
			graded := make(map[uint]grading.Result, len(attempt.Answers))
			for i := range attempt.Answers {
				answer := &attempt.Answers[i]
				q, ok := byID[answer.QuestionID]
				if !ok {
					return ErrUnknownQuestion
				}
				result, err := grading.Grade(q, json.RawMessage(answer.Response))
				if err != nil {
					return err
				}
				answer.PointsEarned = result.PointsEarned
				answer.PendingReview = result.PendingReview
				if !result.PendingReview {
					correct := result.Correct
					answer.IsCorrect = &correct
				}
				answers = append(answers, answer)
				graded[answer.QuestionID] = result
			}

			now := time.Now()
			s.fillScoring(attempt, quiz, answers, now, models.AttemptEndReasonTimeout)
			if attempt.Status == models.AttemptSubmitted {
				attempt.Status = models.AttemptAutoSubmitted
			}

			if len(answers) > 0 {
				if err := tx.Attempt().SaveAnswers(ctx, answers); err != nil {
					return fmt.Errorf("failed to save answers: %w", err)
				}
			}
			if err := tx.Attempt().Update(ctx, attempt); err != nil {
				return fmt.Errorf("failed to update attempt: %w", err)
			}

			for qid, result := range graded {
				if result.PendingReview {
					continue
				}
				q := byID[qid]
				q.RecordGrading(result.Correct, answerTime(answers, qid))
				if err := tx.Question().UpdateStats(ctx, q); err != nil {
					return fmt.Errorf("failed to update question stats: %w", err)
				}
			}

			return s.recomputeAnalytics(ctx, tx, quiz)
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAnalyticsCache(ctx, quiz.ID)
	// A held attempt carries no authoritative score yet, so the scored
	// expiry event only fires once the attempt finalized.
	if attempt.Status == models.AttemptAwaitingReview {
		s.emitManualReviewRequired(ctx, quiz, attempt, countPending(answers))
	} else {
		s.publishEvent(ctx, events.NewEvent(events.EventAttemptExpired, events.AttemptGradedEvent{
			AttemptID:  attempt.ID,
			QuizID:     quiz.ID,
			QuizTitle:  quiz.Title,
			LearnerID:  attempt.LearnerID,
			GradedAt:   time.Now(),
			RawPoints:  attempt.RawPoints,
			MaxPoints:  attempt.MaxPoints,
			Score:      attempt.Score,
			Passed:     attempt.Passed,
			AutoScored: true,
		}))
	}

	return s.submitResult(quiz, attempt, answers), nil
}

// Abandon closes an attempt without grading it. Abandoned attempts
// count against the attempt ceiling and the abandonment rate but never
// contribute to score statistics.
func (s *attemptService) Abandon(ctx context.Context, attemptID uint, learnerID string) error {
	s.logger.Info("Abandoning attempt", "attempt_id", attemptID, "learner_id", learnerID)

	if _, err := s.getOwnedAttempt(ctx, attemptID, learnerID); err != nil {
		return err
	}

	now := time.Now()
	var (
		quiz    *models.Quiz
		attempt *models.QuizAttempt
	)
	err := withConflictRetry(ctx, func() error {
		return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
			var err error
			attempt, err = tx.Attempt().GetByID(ctx, attemptID)
			if err != nil {
				return fmt.Errorf("failed to reload attempt: %w", err)
			}
			if attempt.Status != models.AttemptInProgress {
				return NewStateConflictError("attempt", attempt.ID, string(attempt.Status), "abandon")
			}

			quiz, err = claimQuiz(ctx, tx, attempt.QuizID)
			if err != nil {
				return err
			}

			reason := models.AttemptEndReasonAbandoned
			attempt.Status = models.AttemptAbandoned
			attempt.EndReason = &reason
			attempt.TimeSpent = int(now.Sub(attempt.StartedAt).Seconds())

			if err := tx.Attempt().Update(ctx, attempt); err != nil {
				return fmt.Errorf("failed to update attempt: %w", err)
			}
			return s.recomputeAnalytics(ctx, tx, quiz)
		})
	})
	if err != nil {
		return err
	}

	s.invalidateAnalyticsCache(ctx, quiz.ID)
	s.publishEvent(ctx, events.NewEvent(events.EventAttemptAbandoned, events.AttemptAbandonedEvent{
		AttemptID:   attempt.ID,
		QuizID:      quiz.ID,
		LearnerID:   learnerID,
		AbandonedAt: now,
	}))
	return nil
}

// ===== MANUAL GRADING =====

// GradeAnswer records an instructor's score for one held essay or code
// answer. Correctness is derived from the awarded points, never from
// the answer content. Once the last held answer is graded the attempt
// finalizes to submitted and enters score analytics.
//
// The pending check is repeated inside the transaction, so two graders
// racing over the same answer cannot both record a grade.
func (s *attemptService) GradeAnswer(ctx context.Context, req *GradeAnswerRequest, graderID string) (*SubmitResult, error) {
	s.logger.Info("Grading answer manually",
		"attempt_id", req.AttemptID, "question_id", req.QuestionID, "grader_id", graderID)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.Attempt().GetByID(ctx, req.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	ownedQuiz, err := s.repo.Quiz().GetByID(ctx, existing.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	canManage, err := s.authorizer.CanManage(ctx, graderID, ownedQuiz)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !canManage {
		return nil, NewPolicyError(graderID, req.AttemptID, "attempt", "grade", "only quiz managers may grade answers")
	}

	now := time.Now()
	var (
		quiz      *models.Quiz
		attempt   *models.QuizAttempt
		finalized bool
	)
	err = withConflictRetry(ctx, func() error {
		return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
			var err error
			attempt, err = tx.Attempt().GetByIDWithAnswers(ctx, req.AttemptID)
			if err != nil {
				return fmt.Errorf("failed to reload attempt: %w", err)
			}
			if attempt.Status != models.AttemptAwaitingReview {
				return ErrAttemptNotPendingReview
			}

			var answer *models.AttemptAnswer
			for i := range attempt.Answers {
				if attempt.Answers[i].QuestionID == req.QuestionID {
					answer = &attempt.Answers[i]
					break
				}
			}
			if answer == nil {
				return ErrUnknownQuestion
			}
			if !answer.PendingReview {
				return ErrAttemptNotPendingReview
			}

			quiz, err = claimQuiz(ctx, tx, attempt.QuizID)
			if err != nil {
				return err
			}
			question, ok := questionIndex(quiz.Questions)[req.QuestionID]
			if !ok {
				return ErrUnknownQuestion
			}

			result, err := grading.ApplyManualScore(question, req.PointsEarned)
			if err != nil {
				return err
			}

			correct := result.Correct
			answer.IsCorrect = &correct
			answer.PointsEarned = result.PointsEarned
			answer.PendingReview = false
			answer.GradedBy = &graderID
			answer.GradedAt = &now
			answer.Feedback = req.Feedback

			// Recompute attempt scoring over all answers.
			attempt.RawPoints = 0
			pending := 0
			for i := range attempt.Answers {
				attempt.RawPoints += attempt.Answers[i].PointsEarned
				if attempt.Answers[i].PendingReview {
					pending++
				}
			}
			attempt.Score = grading.ScoreAttempt(attempt.RawPoints, quiz.TotalPoints)
			attempt.Passed = attempt.Score >= quiz.Settings.PassingScore

			finalized = pending == 0
			if finalized {
				attempt.Status = models.AttemptSubmitted
			}

			if err := tx.Attempt().SaveAnswers(ctx, []*models.AttemptAnswer{answer}); err != nil {
				return fmt.Errorf("failed to save answer: %w", err)
			}
			if err := tx.Attempt().Update(ctx, attempt); err != nil {
				return fmt.Errorf("failed to update attempt: %w", err)
			}

			question.RecordGrading(result.Correct, answer.TimeSpent)
			if err := tx.Question().UpdateStats(ctx, question); err != nil {
				return fmt.Errorf("failed to update question stats: %w", err)
			}

			return s.recomputeAnalytics(ctx, tx, quiz)
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAnalyticsCache(ctx, quiz.ID)
	if finalized {
		s.publishEvent(ctx, events.NewEvent(events.EventAttemptGraded, events.AttemptGradedEvent{
			AttemptID:  attempt.ID,
			QuizID:     quiz.ID,
			QuizTitle:  quiz.Title,
			LearnerID:  attempt.LearnerID,
			GradedAt:   now,
			RawPoints:  attempt.RawPoints,
			MaxPoints:  attempt.MaxPoints,
			Score:      attempt.Score,
			Passed:     attempt.Passed,
			AutoScored: false,
		}))
	}

	answers := make([]*models.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		answers[i] = &attempt.Answers[i]
	}
	return s.submitResult(quiz, attempt, answers), nil
}

// ===== SESSION QUERIES =====

// GetTimeRemaining returns the seconds left on an in_progress attempt,
// -1 when the quiz has no time limit and 0 once the deadline passed.
func (s *attemptService) GetTimeRemaining(ctx context.Context, attemptID uint, learnerID string) (int, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, learnerID)
	if err != nil {
		return 0, err
	}
	if attempt.Status != models.AttemptInProgress {
		return 0, ErrAttemptNotInProgress
	}
	if attempt.EndTime == nil {
		return -1, nil
	}
	remaining := int(time.Until(*attempt.EndTime).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RecordProctoringEvent appends one suspicious-activity entry to an
// in_progress attempt's log. High-severity events are forwarded to the
// event bus for instructor alerting.
func (s *attemptService) RecordProctoringEvent(ctx context.Context, req *ProctoringEventRequest, learnerID string) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}

	attempt, err := s.getOwnedAttempt(ctx, req.AttemptID, learnerID)
	if err != nil {
		return err
	}
	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotInProgress
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, attempt.QuizID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}
	if !quiz.Settings.ProctoringEnabled {
		return NewValidationError("attempt_id", "proctoring is not enabled for this quiz", req.AttemptID)
	}

	now := time.Now()
	event := &models.ProctoringEvent{
		AttemptID:  attempt.ID,
		Kind:       req.Kind,
		Detail:     datatypes.JSON(req.Detail),
		Severity:   req.Severity,
		OccurredAt: now,
		TimeOffset: int(now.Sub(attempt.StartedAt).Seconds()),
	}
	if err := s.repo.Attempt().AppendProctoringEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record proctoring event: %w", err)
	}

	if req.Severity >= 4 {
		s.publishEvent(ctx, events.NewEvent(events.EventProctoringFlag, events.ProctoringFlagEvent{
			AttemptID:  attempt.ID,
			QuizID:     quiz.ID,
			LearnerID:  learnerID,
			Kind:       string(req.Kind),
			Severity:   req.Severity,
			OccurredAt: now,
		}))
	}
	return nil
}

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*models.QuizAttempt, int64, error) {
	return s.repo.Attempt().List(ctx, filters)
}

// ===== HELPERS =====

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, learnerID string) (*models.QuizAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.LearnerID != learnerID {
		return nil, NewPolicyError(learnerID, attemptID, "attempt", "access", "attempt belongs to another learner")
	}
	return attempt, nil
}

// claimQuiz reloads the quiz inside the transaction and bumps its
// version, so commits against the same aggregate serialize. A version
// conflict means another commit landed between the reload and the bump;
// the caller rolls back and retries on fresh state.
func claimQuiz(ctx context.Context, tx repositories.Repository, quizID uint) (*models.Quiz, error) {
	quiz, err := tx.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := tx.Quiz().UpdateVersioned(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// fillScoring derives the attempt's raw points, normalized score, pass
// flag and end state from the graded answer set.
func (s *attemptService) fillScoring(attempt *models.QuizAttempt, quiz *models.Quiz, answers []*models.AttemptAnswer, now time.Time, endReason string) {
	raw := 0.0
	pending := 0
	for _, a := range answers {
		raw += a.PointsEarned
		if a.PendingReview {
			pending++
		}
	}

	attempt.RawPoints = raw
	attempt.MaxPoints = quiz.TotalPoints
	attempt.Score = grading.ScoreAttempt(raw, quiz.TotalPoints)
	attempt.Passed = attempt.Score >= quiz.Settings.PassingScore
	attempt.SubmittedAt = &now
	attempt.EndReason = &endReason
	if attempt.TimeSpent == 0 {
		attempt.TimeSpent = int(now.Sub(attempt.StartedAt).Seconds())
	}

	if pending > 0 {
		attempt.Status = models.AttemptAwaitingReview
	} else {
		attempt.Status = models.AttemptSubmitted
	}
}

// recomputeAnalytics folds the quiz's full attempt set, including the
// change being committed, into the summary row. Runs inside the same
// transaction as the attempt write.
func (s *attemptService) recomputeAnalytics(ctx context.Context, tx repositories.Repository, quiz *models.Quiz) error {
	attempts, err := tx.Attempt().GetByQuiz(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("failed to load attempts for analytics: %w", err)
	}
	summary := s.recomputer.Recompute(quiz.ID, quiz.Settings.PassingScore, attempts)
	summary.DifficultyRating = analytics.QuestionDifficulty(quiz.Questions)
	if err := tx.Analytics().Upsert(ctx, &summary); err != nil {
		return fmt.Errorf("failed to upsert analytics: %w", err)
	}
	return nil
}

func (s *attemptService) invalidateAnalyticsCache(ctx context.Context, quizID uint) {
	if err := s.cache.Delete(ctx, analyticsCacheKey(quizID)); err != nil {
		s.logger.Warn("Failed to invalidate analytics cache", "quiz_id", quizID, "error", err)
	}
}

func (s *attemptService) publishEvent(ctx context.Context, event *events.AssessmentEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func (s *attemptService) emitGradingEvents(ctx context.Context, quiz *models.Quiz, attempt *models.QuizAttempt, autoScored bool) {
	if attempt.Status == models.AttemptAwaitingReview {
		s.emitManualReviewRequired(ctx, quiz, attempt, countPendingSlice(attempt.Answers))
		return
	}
	s.publishEvent(ctx, events.NewEvent(events.EventAttemptGraded, events.AttemptGradedEvent{
		AttemptID:  attempt.ID,
		QuizID:     quiz.ID,
		QuizTitle:  quiz.Title,
		LearnerID:  attempt.LearnerID,
		GradedAt:   time.Now(),
		RawPoints:  attempt.RawPoints,
		MaxPoints:  attempt.MaxPoints,
		Score:      attempt.Score,
		Passed:     attempt.Passed,
		AutoScored: autoScored,
	}))
}

func (s *attemptService) emitManualReviewRequired(ctx context.Context, quiz *models.Quiz, attempt *models.QuizAttempt, pending int) {
	s.publishEvent(ctx, events.NewEvent(events.EventManualReviewRequired, events.ManualReviewRequiredEvent{
		AttemptID:      attempt.ID,
		QuizID:         quiz.ID,
		QuizTitle:      quiz.Title,
		LearnerID:      attempt.LearnerID,
		PendingAnswers: pending,
	}))
}

// submitResult builds the learner-facing outcome. The score is part of
// every finalized submission; only the per-answer detail follows the
// quiz's result-visibility setting. A held attempt exposes no score.
func (s *attemptService) submitResult(quiz *models.Quiz, attempt *models.QuizAttempt, answers []*models.AttemptAnswer) *SubmitResult {
	result := &SubmitResult{
		AttemptID:     attempt.ID,
		Status:        attempt.Status,
		PendingReview: countPending(answers),
	}
	if attempt.Status.IsFinalized() {
		result.RawPoints = attempt.RawPoints
		result.MaxPoints = attempt.MaxPoints
		result.Score = attempt.Score
		result.Passed = attempt.Passed
		if quiz.Settings.ShowResults {
			result.Answers = answerDetails(answers)
		}
	}
	return result
}

func answerDetails(answers []*models.AttemptAnswer) []AnswerDetail {
	details := make([]AnswerDetail, len(answers))
	for i, a := range answers {
		details[i] = AnswerDetail{
			QuestionID:    a.QuestionID,
			IsCorrect:     a.IsCorrect,
			PointsEarned:  a.PointsEarned,
			PendingReview: a.PendingReview,
		}
	}
	return details
}

func questionIndex(questions []models.Question) map[uint]*models.Question {
	byID := make(map[uint]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	return byID
}

func answerTime(answers []*models.AttemptAnswer, questionID uint) int {
	for _, a := range answers {
		if a.QuestionID == questionID {
			return a.TimeSpent
		}
	}
	return 0
}

func countPending(answers []*models.AttemptAnswer) int {
	n := 0
	for _, a := range answers {
		if a.PendingReview {
			n++
		}
	}
	return n
}

func countPendingSlice(answers []models.AttemptAnswer) int {
	n := 0
	for i := range answers {
		if answers[i].PendingReview {
			n++
		}
	}
	return n
}

// learnerQuestions strips the answer key from each question's content
// before it reaches a learner.
func learnerQuestions(questions []models.Question) ([]QuestionForAttempt, error) {
	out := make([]QuestionForAttempt, len(questions))
	for i := range questions {
		content, err := stripAnswerKey(&questions[i])
		if err != nil {
			return nil, err
		}
		out[i] = QuestionForAttempt{
			ID:      questions[i].ID,
			Text:    questions[i].Text,
			Type:    questions[i].Type,
			Points:  questions[i].Points,
			Order:   questions[i].Order,
			Content: content,
		}
	}
	return out, nil
}

func stripAnswerKey(q *models.Question) (json.RawMessage, error) {
	decoded, err := q.DecodeContent()
	if err != nil {
		return nil, NewDataIntegrityError("question", q.ID, err.Error())
	}

	var view interface{}
	switch content := decoded.(type) {
	case *models.ChoiceContent:
		options := make([]models.ChoiceOption, len(content.Options))
		for i, opt := range content.Options {
			options[i] = models.ChoiceOption{ID: opt.ID, Text: opt.Text, Order: opt.Order}
		}
		view = models.ChoiceContent{Options: options}
	case *models.TrueFalseContent:
		view = struct{}{}
	case *models.FillBlankContent:
		view = struct{}{}
	case *models.EssayContent:
		view = models.EssayContent{MinWords: content.MinWords, MaxWords: content.MaxWords}
	case *models.CodeContent:
		visible := make([]models.CodeTestCase, 0, len(content.TestCases))
		for _, tc := range content.TestCases {
			if !tc.Hidden {
				visible = append(visible, tc)
			}
		}
		view = models.CodeContent{
			Language:    content.Language,
			StarterCode: content.StarterCode,
			TestCases:   visible,
		}
	case *models.MatchingContent:
		view = models.MatchingContent{
			LeftItems:  content.LeftItems,
			RightItems: content.RightItems,
		}
	case *models.OrderingContent:
		view = models.OrderingContent{Items: content.Items}
	default:
		return nil, NewDataIntegrityError("question", q.ID, "unsupported content shape")
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode learner view for question %d: %w", q.ID, err)
	}
	return raw, nil
}
