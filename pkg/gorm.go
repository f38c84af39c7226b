package pkg

import (
	"fmt"

	"github.com/quizforge/assessment-engine/internal/config"
	"github.com/quizforge/assessment-engine/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the engine's tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Quiz{},
		&models.QuizSettings{},
		&models.Question{},
		&models.QuizAttempt{},
		&models.AttemptAnswer{},
		&models.ProctoringEvent{},
		&models.QuizAnalytics{},
	)
}
