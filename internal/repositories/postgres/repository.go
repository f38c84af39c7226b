package postgres

import (
	"context"
	"errors"

	"github.com/quizforge/assessment-engine/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the gorm-backed repository manager.
type Repository struct {
	db        *gorm.DB
	quiz      repositories.QuizRepository
	question  repositories.QuestionRepository
	attempt   repositories.AttemptRepository
	analytics repositories.AnalyticsRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		db:        db,
		quiz:      NewQuizPostgreSQL(db),
		question:  NewQuestionPostgreSQL(db),
		attempt:   NewAttemptPostgreSQL(db),
		analytics: NewAnalyticsPostgreSQL(db),
	}
}

func (r *Repository) Quiz() repositories.QuizRepository           { return r.quiz }
func (r *Repository) Question() repositories.QuestionRepository   { return r.question }
func (r *Repository) Attempt() repositories.AttemptRepository     { return r.attempt }
func (r *Repository) Analytics() repositories.AnalyticsRepository { return r.analytics }

// WithTx runs fn inside a database transaction. Every repository handed
// to fn shares the transaction, so the quiz aggregate (quiz row,
// questions, attempts, analytics summary) commits or rolls back as one
// unit.
func (r *Repository) WithTx(ctx context.Context, fn func(tx repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// translateError maps gorm sentinel errors onto repository errors.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrDuplicateKey
	}
	return err
}
