package postgres

import (
	"context"

	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (r AttemptPostgreSQL) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (r AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := r.db.WithContext(ctx).
		Preload("Answers").
		Preload("ProctoringEvents").
		First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (r AttemptPostgreSQL) Update(ctx context.Context, attempt *models.QuizAttempt) error {
	return r.db.WithContext(ctx).Omit("Answers", "ProctoringEvents").Save(attempt).Error
}

func (r AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	var attempts []*models.QuizAttempt
	var total int64

	query := r.db.WithContext(ctx).Model(&models.QuizAttempt{})
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applyPaginationAndSort(query, filters)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (r AttemptPostgreSQL) GetActive(ctx context.Context, quizID uint, learnerID string) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND learner_id = ? AND status = ?", quizID, learnerID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (r AttemptPostgreSQL) CountByLearner(ctx context.Context, quizID uint, learnerID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r AttemptPostgreSQL) GetByQuiz(ctx context.Context, quizID uint) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	if err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r AttemptPostgreSQL) GetByLearner(ctx context.Context, quizID uint, learnerID string) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	if err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r AttemptPostgreSQL) SaveAnswers(ctx context.Context, answers []*models.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(answers).Error
}

func (r AttemptPostgreSQL) AppendProctoringEvent(ctx context.Context, event *models.ProctoringEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.QuizID != nil {
		query = query.Where("quiz_id = ?", *filters.QuizID)
	}
	if filters.LearnerID != nil {
		query = query.Where("learner_id = ?", *filters.LearnerID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (r AttemptPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "score", "submitted_at", "created_at":
	default:
		sortBy = "created_at"
	}
	order := "desc"
	if filters.SortOrder == "asc" {
		order = "asc"
	}
	query = query.Order(sortBy + " " + order)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
