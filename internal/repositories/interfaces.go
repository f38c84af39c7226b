package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/quizforge/assessment-engine/internal/models"
)

// ErrNotFound is returned by all repositories for missing records.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned when an optimistic-concurrency write
// observes a stale aggregate version. Callers retry the whole operation.
var ErrVersionConflict = errors.New("aggregate version conflict")

// ErrDuplicateKey is returned when an insert violates a unique index,
// e.g. two racing attempt creations landing on the same
// (quiz, learner, attempt_number).
var ErrDuplicateKey = errors.New("duplicate key")

// IsNotFoundError reports whether err is a missing-record error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsVersionConflict reports whether err is a stale-version write.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsDuplicateKeyError reports whether err is a unique-index violation.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// Repository is the aggregate repository manager. WithTx runs fn against
// a transactional view of every repository; the quiz aggregate is the
// unit of atomicity, so every state-changing service operation commits
// through a single WithTx call.
type Repository interface {
	Quiz() QuizRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Analytics() AnalyticsRepository

	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error)
	List(ctx context.Context, filters QuizFilters) ([]*models.Quiz, int64, error)
	Delete(ctx context.Context, id uint) error

	// UpdateVersioned persists the quiz only if the stored version still
	// matches quiz.Version, bumping it by one. Returns ErrVersionConflict
	// on a stale read.
	UpdateVersioned(ctx context.Context, quiz *models.Quiz) error
}

type QuestionRepository interface {
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByQuiz(ctx context.Context, quizID uint) ([]*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	DeleteByQuiz(ctx context.Context, quizID uint) error

	// UpdateStats writes only the rolling analytics counters.
	UpdateStats(ctx context.Context, question *models.Question) error
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.QuizAttempt, error)
	Update(ctx context.Context, attempt *models.QuizAttempt) error
	List(ctx context.Context, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)

	// GetActive returns the learner's in_progress attempt, if any.
	GetActive(ctx context.Context, quizID uint, learnerID string) (*models.QuizAttempt, error)
	CountByLearner(ctx context.Context, quizID uint, learnerID string) (int, error)
	GetByQuiz(ctx context.Context, quizID uint) ([]*models.QuizAttempt, error)
	GetByLearner(ctx context.Context, quizID uint, learnerID string) ([]*models.QuizAttempt, error)

	SaveAnswers(ctx context.Context, answers []*models.AttemptAnswer) error
	AppendProctoringEvent(ctx context.Context, event *models.ProctoringEvent) error
}

type AnalyticsRepository interface {
	Upsert(ctx context.Context, analytics *models.QuizAnalytics) error
	GetByQuiz(ctx context.Context, quizID uint) (*models.QuizAnalytics, error)
}

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	Status    *models.QuizStatus `json:"status"`
	Type      *models.QuizType   `json:"type"`
	CreatedBy *string            `json:"created_by"`
	CourseID  *string            `json:"course_id"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title", "published_at"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	QuizID    *uint                 `json:"quiz_id"`
	LearnerID *string               `json:"learner_id"`
	Status    *models.AttemptStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type QuestionStats struct {
	QuestionID      uint    `json:"question_id"`
	TotalAttempts   int     `json:"total_attempts"`
	CorrectAttempts int     `json:"correct_attempts"`
	Accuracy        float64 `json:"accuracy"`
	AvgResponseTime float64 `json:"avg_response_time"`
	Difficulty      float64 `json:"difficulty"`
}
