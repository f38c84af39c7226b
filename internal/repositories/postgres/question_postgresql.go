package postgres

import (
	"context"

	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (r QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(questions).Error
}

func (r QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &question, nil
}

func (r QuestionPostgreSQL) GetByQuiz(ctx context.Context, quizID uint) ([]*models.Question, error) {
	var questions []*models.Question
	if err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("\"order\" ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r QuestionPostgreSQL) DeleteByQuiz(ctx context.Context, quizID uint) error {
	return r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Delete(&models.Question{}).Error
}

// UpdateStats touches only the rolling analytics columns so concurrent
// content edits are not clobbered by grading.
func (r QuestionPostgreSQL) UpdateStats(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("id = ?", question.ID).
		Updates(map[string]interface{}{
			"total_attempts":    question.TotalAttempts,
			"correct_attempts":  question.CorrectAttempts,
			"avg_response_time": question.AvgResponseTime,
			"difficulty":        question.Difficulty,
		}).Error
}
