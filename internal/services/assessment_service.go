package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizforge/assessment-engine/internal/auth"
	"github.com/quizforge/assessment-engine/internal/cache"
	"github.com/quizforge/assessment-engine/internal/events"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/quizforge/assessment-engine/internal/validator"
	"gorm.io/datatypes"
)

type assessmentService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	validator  *validator.Validator
	publisher  events.EventPublisher
	authorizer auth.Authorizer
	cache      cache.CacheService
}

func NewAssessmentService(
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	authorizer auth.Authorizer,
	cacheService cache.CacheService,
) AssessmentService {
	return &assessmentService{
		repo:       repo,
		logger:     logger,
		validator:  v,
		publisher:  publisher,
		authorizer: authorizer,
		cache:      cacheService,
	}
}

// ===== CORE OPERATIONS =====

func (s *assessmentService) Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error) {
	s.logger.Info("Creating quiz", "creator_id", creatorID, "title", req.Title)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	canManage, err := s.authorizer.CanManage(ctx, creatorID, nil)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !canManage {
		return nil, NewPolicyError(creatorID, 0, "quiz", "create", "insufficient role permissions")
	}

	questions, err := s.buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	quizType := req.Type
	if quizType == "" {
		quizType = models.QuizTypeAssessment
	}

	quiz := &models.Quiz{
		Title:       req.Title,
		Description: req.Description,
		Type:        quizType,
		Status:      models.QuizStatusDraft,
		Weight:      req.Weight,
		CourseID:    req.CourseID,
		LessonID:    req.LessonID,
		CreatedBy:   creatorID,
		Version:     1,
	}
	quiz.Settings = buildSettings(req.Settings)

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.Quiz().Create(ctx, quiz); err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}

		for i := range questions {
			questions[i].QuizID = quiz.ID
		}
		if err := tx.Question().CreateBatch(ctx, questions); err != nil {
			return fmt.Errorf("failed to create questions: %w", err)
		}

		quiz.Questions = make([]models.Question, len(questions))
		for i := range questions {
			quiz.Questions[i] = *questions[i]
		}
		quiz.RecomputeTotalPoints()
		quiz.Settings.QuizID = quiz.ID

		if err := tx.Quiz().UpdateVersioned(ctx, quiz); err != nil {
			return fmt.Errorf("failed to store total points: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quiz created successfully", "quiz_id", quiz.ID, "total_points", quiz.TotalPoints)
	return &QuizResponse{Quiz: quiz}, nil
}

func (s *assessmentService) GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &QuizResponse{Quiz: quiz}, nil
}

// Update applies edits to the quiz definition. Once any attempt has
// reached a terminal state the answer keys, point values and question
// set are frozen; only presentation fields (title, description, weight,
// question text and order) may still change. Settings that govern future
// attempts remain editable.
func (s *assessmentService) Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error) {
	s.logger.Info("Updating quiz", "quiz_id", id, "user_id", userID)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	var updated *models.Quiz
	err := withConflictRetry(ctx, func() error {
		quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuizNotFound
			}
			return fmt.Errorf("failed to get quiz: %w", err)
		}

		if err := s.checkManage(ctx, userID, quiz, "update"); err != nil {
			return err
		}
		if quiz.Status == models.QuizStatusArchived {
			return ErrQuizArchived
		}

		locked, err := s.hasTerminalAttempts(ctx, quiz.ID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			quiz.Title = *req.Title
		}
		if req.Description != nil {
			quiz.Description = req.Description
		}
		if req.Weight != nil {
			quiz.Weight = *req.Weight
		}
		if req.Settings != nil {
			settings := buildSettings(*req.Settings)
			settings.QuizID = quiz.ID
			quiz.Settings = settings
		}

		return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
			if len(req.Questions) > 0 {
				if err := s.applyQuestionEdits(ctx, tx, quiz, req.Questions, locked); err != nil {
					return err
				}
			}
			quiz.RecomputeTotalPoints()
			if err := tx.Quiz().UpdateVersioned(ctx, quiz); err != nil {
				return err
			}
			updated = quiz
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAnalyticsCache(ctx, id)
	s.logger.Info("Quiz updated successfully", "quiz_id", id)
	return &QuizResponse{Quiz: updated}, nil
}

// Publish transitions a draft quiz to published. The publish timestamp
// is set exactly once; re-publishing an already published quiz is a
// no-op that returns the original timestamp.
func (s *assessmentService) Publish(ctx context.Context, id uint, userID string) (*time.Time, error) {
	s.logger.Info("Publishing quiz", "quiz_id", id, "user_id", userID)

	var publishedAt *time.Time
	err := withConflictRetry(ctx, func() error {
		quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuizNotFound
			}
			return fmt.Errorf("failed to get quiz: %w", err)
		}

		if err := s.checkManage(ctx, userID, quiz, "publish"); err != nil {
			return err
		}
		if quiz.Status == models.QuizStatusArchived {
			return ErrQuizArchived
		}
		if quiz.Status == models.QuizStatusPublished {
			publishedAt = quiz.PublishedAt
			return nil
		}

		if err := s.validatePublishable(quiz); err != nil {
			return err
		}

		now := time.Now()
		quiz.Status = models.QuizStatusPublished
		quiz.PublishedAt = &now

		if err := s.repo.Quiz().UpdateVersioned(ctx, quiz); err != nil {
			return err
		}
		publishedAt = &now

		s.publishEvent(ctx, events.NewEvent(events.EventQuizPublished, events.QuizPublishedEvent{
			QuizID:      quiz.ID,
			QuizTitle:   quiz.Title,
			CourseID:    quiz.CourseID,
			PublishedAt: now,
			CreatorID:   quiz.CreatedBy,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return publishedAt, nil
}

func (s *assessmentService) Archive(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Archiving quiz", "quiz_id", id, "user_id", userID)

	return withConflictRetry(ctx, func() error {
		quiz, err := s.repo.Quiz().GetByID(ctx, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuizNotFound
			}
			return fmt.Errorf("failed to get quiz: %w", err)
		}

		if err := s.checkManage(ctx, userID, quiz, "archive"); err != nil {
			return err
		}
		if quiz.Status == models.QuizStatusArchived {
			return nil
		}

		quiz.Status = models.QuizStatusArchived
		return s.repo.Quiz().UpdateVersioned(ctx, quiz)
	})
}

// Delete removes a quiz. Only drafts may be deleted; published quizzes
// with learner history must be archived instead.
func (s *assessmentService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting quiz", "quiz_id", id, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkManage(ctx, userID, quiz, "delete"); err != nil {
		return err
	}
	if quiz.Status != models.QuizStatusDraft {
		return NewStateConflictError("quiz", id, string(quiz.Status), "delete")
	}

	return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.Question().DeleteByQuiz(ctx, id); err != nil {
			return err
		}
		return tx.Quiz().Delete(ctx, id)
	})
}

func (s *assessmentService) List(ctx context.Context, filters repositories.QuizFilters, userID string) ([]*models.Quiz, int64, error) {
	return s.repo.Quiz().List(ctx, filters)
}

// ===== HELPERS =====

func (s *assessmentService) checkManage(ctx context.Context, userID string, quiz *models.Quiz, action string) error {
	canManage, err := s.authorizer.CanManage(ctx, userID, quiz)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !canManage {
		return NewPolicyError(userID, quiz.ID, "quiz", action, "not owner or insufficient permissions")
	}
	return nil
}

func (s *assessmentService) buildQuestions(reqs []QuestionRequest) ([]*models.Question, error) {
	questions := make([]*models.Question, len(reqs))
	for i, qr := range reqs {
		q := &models.Question{
			Text:    qr.Text,
			Type:    qr.Type,
			Points:  qr.Points,
			Order:   qr.Order,
			Content: datatypes.JSON(qr.Content),
		}
		if q.Order == 0 {
			q.Order = i + 1
		}
		questions[i] = q
	}
	if err := s.validator.Question().ValidateBatch(questions); err != nil {
		return nil, NewValidationError("questions", err.Error(), nil)
	}
	return questions, nil
}

// applyQuestionEdits merges the requested question list into the quiz.
// When locked, only text and order edits of existing questions are
// accepted; type, points, content, additions and removals are rejected.
func (s *assessmentService) applyQuestionEdits(ctx context.Context, tx repositories.Repository, quiz *models.Quiz, reqs []QuestionRequest, locked bool) error {
	existing := make(map[uint]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		existing[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	if locked {
		if len(reqs) != len(existing) {
			return ErrQuizLocked
		}
		for _, qr := range reqs {
			current, ok := existing[qr.ID]
			if !ok {
				return ErrQuizLocked
			}
			if qr.Type != current.Type || qr.Points != current.Points ||
				!bytes.Equal(qr.Content, current.Content) {
				return ErrQuizLocked
			}
			current.Text = qr.Text
			current.Order = qr.Order
			if err := tx.Question().Update(ctx, current); err != nil {
				return err
			}
		}
		return nil
	}

	// Unlocked: replace the question set wholesale.
	questions, err := s.buildQuestions(reqs)
	if err != nil {
		return err
	}
	if err := tx.Question().DeleteByQuiz(ctx, quiz.ID); err != nil {
		return err
	}
	for i := range questions {
		questions[i].QuizID = quiz.ID
	}
	if err := tx.Question().CreateBatch(ctx, questions); err != nil {
		return err
	}
	quiz.Questions = make([]models.Question, len(questions))
	for i := range questions {
		quiz.Questions[i] = *questions[i]
	}
	return nil
}

func (s *assessmentService) validatePublishable(quiz *models.Quiz) error {
	if len(quiz.Questions) == 0 {
		return NewValidationError("questions", "quiz must have at least one question to publish", nil)
	}
	if quiz.Settings.MaxAttempts < 1 {
		return NewValidationError("settings.max_attempts", "must be a positive integer", quiz.Settings.MaxAttempts)
	}
	if quiz.Settings.PassingScore < 0 || quiz.Settings.PassingScore > 100 {
		return NewValidationError("settings.passing_score", "must be between 0 and 100", quiz.Settings.PassingScore)
	}
	return nil
}

func (s *assessmentService) hasTerminalAttempts(ctx context.Context, quizID uint) (bool, error) {
	attempts, err := s.repo.Attempt().GetByQuiz(ctx, quizID)
	if err != nil {
		return false, fmt.Errorf("failed to load attempts: %w", err)
	}
	for _, a := range attempts {
		if a.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *assessmentService) invalidateAnalyticsCache(ctx context.Context, quizID uint) {
	if err := s.cache.Delete(ctx, analyticsCacheKey(quizID)); err != nil {
		s.logger.Warn("Failed to invalidate analytics cache", "quiz_id", quizID, "error", err)
	}
}

func (s *assessmentService) publishEvent(ctx context.Context, event *events.AssessmentEvent) {
	// Fire-and-forget: downstream notification failures never roll back
	// the quiz mutation.
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func buildSettings(req QuizSettingsRequest) models.QuizSettings {
	return models.QuizSettings{
		TimeLimit:          req.TimeLimit,
		PerQuestionTime:    req.PerQuestionTime,
		MaxAttempts:        req.MaxAttempts,
		PassingScore:       req.PassingScore,
		AllowRetake:        req.AllowRetake,
		ShuffleQuestions:   req.ShuffleQuestions,
		ShuffleOptions:     req.ShuffleOptions,
		LinearNavigation:   req.LinearNavigation,
		ShowResults:        req.ShowResults,
		ShowCorrectAnswers: req.ShowCorrectAnswers,
		ProctoringEnabled:  req.ProctoringEnabled,
	}
}
