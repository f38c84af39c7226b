package postgres

import (
	"context"

	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalyticsPostgreSQL struct {
	db *gorm.DB
}

func NewAnalyticsPostgreSQL(db *gorm.DB) repositories.AnalyticsRepository {
	return &AnalyticsPostgreSQL{db: db}
}

func (r AnalyticsPostgreSQL) Upsert(ctx context.Context, analytics *models.QuizAnalytics) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "quiz_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_attempts", "completed_attempts", "abandoned_attempts",
				"pending_review", "average_score", "highest_score", "lowest_score",
				"pass_rate", "abandonment_rate", "average_duration",
				"difficulty_rating", "last_computed_at", "updated_at",
			}),
		}).
		Create(analytics).Error
}

func (r AnalyticsPostgreSQL) GetByQuiz(ctx context.Context, quizID uint) (*models.QuizAnalytics, error) {
	var analytics models.QuizAnalytics
	if err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		First(&analytics).Error; err != nil {
		return nil, translateError(err)
	}
	return &analytics, nil
}
