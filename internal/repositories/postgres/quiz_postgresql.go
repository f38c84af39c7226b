package postgres

import (
	"context"

	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"gorm.io/gorm"
)

type QuizPostgreSQL struct {
	db *gorm.DB
}

func NewQuizPostgreSQL(db *gorm.DB) repositories.QuizRepository {
	return &QuizPostgreSQL{db: db}
}

func (r QuizPostgreSQL) Create(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

func (r QuizPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).
		Preload("Settings").
		First(&quiz, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &quiz, nil
}

func (r QuizPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).
		Preload("Settings").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.\"order\" ASC")
		}).
		First(&quiz, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &quiz, nil
}

func (r QuizPostgreSQL) List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	var quizzes []*models.Quiz
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Quiz{})
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applyPaginationAndSort(query, filters)

	if err := query.Preload("Settings").Find(&quizzes).Error; err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

func (r QuizPostgreSQL) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Quiz{}, id).Error
}

// UpdateVersioned writes the quiz row guarded by its version column.
// A zero RowsAffected means another writer got there first.
func (r QuizPostgreSQL) UpdateVersioned(ctx context.Context, quiz *models.Quiz) error {
	result := r.db.WithContext(ctx).
		Model(&models.Quiz{}).
		Where("id = ? AND version = ?", quiz.ID, quiz.Version).
		Updates(map[string]interface{}{
			"title":        quiz.Title,
			"description":  quiz.Description,
			"type":         quiz.Type,
			"status":       quiz.Status,
			"total_points": quiz.TotalPoints,
			"weight":       quiz.Weight,
			"course_id":    quiz.CourseID,
			"lesson_id":    quiz.LessonID,
			"published_at": quiz.PublishedAt,
			"version":      quiz.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrVersionConflict
	}

	quiz.Version++

	if quiz.Settings.QuizID != 0 {
		if err := r.db.WithContext(ctx).Save(&quiz.Settings).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r QuizPostgreSQL) applyFilters(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (r QuizPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "title", "published_at", "created_at":
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
