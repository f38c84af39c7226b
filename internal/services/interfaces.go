package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/quizforge/assessment-engine/internal/auth"
	"github.com/quizforge/assessment-engine/internal/cache"
	"github.com/quizforge/assessment-engine/internal/events"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/quizforge/assessment-engine/internal/validator"
)

// ===== SERVICE INTERFACES =====

// AssessmentService manages the quiz aggregate's definition lifecycle.
type AssessmentService interface {
	Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error)
	Publish(ctx context.Context, id uint, userID string) (*time.Time, error)
	Archive(ctx context.Context, id uint, userID string) error
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.QuizFilters, userID string) ([]*models.Quiz, int64, error)
}

// AttemptService manages the attempt lifecycle and grading.
type AttemptService interface {
	Start(ctx context.Context, quizID uint, learnerID string) (*StartAttemptResponse, error)
	Submit(ctx context.Context, req *SubmitAttemptRequest, learnerID string) (*SubmitResult, error)
	Expire(ctx context.Context, attemptID uint) (*SubmitResult, error)
	Abandon(ctx context.Context, attemptID uint, learnerID string) error
	GradeAnswer(ctx context.Context, req *GradeAnswerRequest, graderID string) (*SubmitResult, error)
	GetTimeRemaining(ctx context.Context, attemptID uint, learnerID string) (int, error)
	RecordProctoringEvent(ctx context.Context, req *ProctoringEventRequest, learnerID string) error
	List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*models.QuizAttempt, int64, error)
}

// ResultsService exposes attempt outcomes and quiz analytics.
type ResultsService interface {
	GetAttemptResult(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error)
	GetLearnerResults(ctx context.Context, quizID uint, learnerID string) (*LearnerResults, error)
	GetQuizAnalytics(ctx context.Context, quizID uint, userID string) (*QuizAnalyticsResponse, error)
}

// ExportService renders results and analytics as downloadable workbooks.
type ExportService interface {
	ExportResults(ctx context.Context, quizID uint, userID string) ([]byte, error)
}

// ServiceManager bundles all services behind one constructor.
type ServiceManager interface {
	Assessment() AssessmentService
	Attempt() AttemptService
	Results() ResultsService
	Export() ExportService
}

type serviceManager struct {
	assessment AssessmentService
	attempt    AttemptService
	results    ResultsService
	export     ExportService
}

func NewServiceManager(
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	authorizer auth.Authorizer,
	cacheService cache.CacheService,
) ServiceManager {
	results := NewResultsService(repo, logger, authorizer, cacheService)
	return &serviceManager{
		assessment: NewAssessmentService(repo, logger, v, publisher, authorizer, cacheService),
		attempt:    NewAttemptService(repo, logger, v, publisher, authorizer, cacheService),
		results:    results,
		export:     NewExportService(repo, logger, authorizer),
	}
}

func (m *serviceManager) Assessment() AssessmentService { return m.assessment }
func (m *serviceManager) Attempt() AttemptService       { return m.attempt }
func (m *serviceManager) Results() ResultsService       { return m.results }
func (m *serviceManager) Export() ExportService         { return m.export }

// ===== REQUEST / RESPONSE TYPES =====

type QuizSettingsRequest struct {
	TimeLimit          int  `json:"time_limit" validate:"min=0,max=300"`
	PerQuestionTime    int  `json:"per_question_time" validate:"min=0"`
	MaxAttempts        int  `json:"max_attempts" validate:"required,min=1,max=10"`
	PassingScore       int  `json:"passing_score" validate:"min=0,max=100"`
	AllowRetake        bool `json:"allow_retake"`
	ShuffleQuestions   bool `json:"shuffle_questions"`
	ShuffleOptions     bool `json:"shuffle_options"`
	LinearNavigation   bool `json:"linear_navigation"`
	ShowResults        bool `json:"show_results"`
	ShowCorrectAnswers bool `json:"show_correct_answers"`
	ProctoringEnabled  bool `json:"proctoring_enabled"`
}

type QuestionRequest struct {
	ID      uint                `json:"id"` // zero for new questions
	Text    string              `json:"text" validate:"required,min=1"`
	Type    models.QuestionType `json:"type" validate:"required,question_type"`
	Points  int                 `json:"points" validate:"required,min=1,max=100"`
	Order   int                 `json:"order"`
	Content json.RawMessage     `json:"content" validate:"required"`
}

type CreateQuizRequest struct {
	Title       string              `json:"title" validate:"required,min=1,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=1000"`
	Type        models.QuizType     `json:"type" validate:"omitempty,quiz_type"`
	Weight      float64             `json:"weight" validate:"min=0,max=1"`
	CourseID    *string             `json:"course_id"`
	LessonID    *string             `json:"lesson_id"`
	Settings    QuizSettingsRequest `json:"settings" validate:"required"`
	Questions   []QuestionRequest   `json:"questions" validate:"required,min=1,dive"`
}

type UpdateQuizRequest struct {
	Title       *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description" validate:"omitempty,max=1000"`
	Weight      *float64             `json:"weight" validate:"omitempty,min=0,max=1"`
	Settings    *QuizSettingsRequest `json:"settings"`
	Questions   []QuestionRequest    `json:"questions" validate:"omitempty,dive"`
}

type QuizResponse struct {
	*models.Quiz
}

type StartAttemptResponse struct {
	AttemptID     uint       `json:"attempt_id"`
	AttemptNumber int        `json:"attempt_number"`
	StartedAt     time.Time  `json:"started_at"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Questions     []QuestionForAttempt `json:"questions"`
}

// QuestionForAttempt is the learner-facing view of a question: the
// answer key is stripped from the content.
type QuestionForAttempt struct {
	ID      uint                `json:"id"`
	Text    string              `json:"text"`
	Type    models.QuestionType `json:"type"`
	Points  int                 `json:"points"`
	Order   int                 `json:"order"`
	Content json.RawMessage     `json:"content"`
}

type AnswerSubmission struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	Response   json.RawMessage `json:"response"`
	TimeSpent  int             `json:"time_spent" validate:"min=0"`
}

type SubmitAttemptRequest struct {
	AttemptID uint               `json:"attempt_id" validate:"required"`
	Answers   []AnswerSubmission `json:"answers" validate:"dive"`
	TimeSpent *int               `json:"time_spent" validate:"omitempty,min=0"`
}

type GradeAnswerRequest struct {
	AttemptID    uint    `json:"attempt_id" validate:"required"`
	QuestionID   uint    `json:"question_id" validate:"required"`
	PointsEarned float64 `json:"points_earned" validate:"min=0"`
	Feedback     *string `json:"feedback" validate:"omitempty,max=2000"`
}

type AnswerDetail struct {
	QuestionID    uint    `json:"question_id"`
	IsCorrect     *bool   `json:"is_correct"`
	PointsEarned  float64 `json:"points_earned"`
	PendingReview bool    `json:"pending_review"`
}

type SubmitResult struct {
	AttemptID     uint                 `json:"attempt_id"`
	Status        models.AttemptStatus `json:"status"`
	RawPoints     float64              `json:"raw_points"`
	MaxPoints     int                  `json:"max_points"`
	Score         int                  `json:"score"`
	Passed        bool                 `json:"passed"`
	PendingReview int                  `json:"pending_review"`
	// Answers is populated only when the quiz's result-visibility policy
	// allows it.
	Answers []AnswerDetail `json:"answers,omitempty"`
}

type ProctoringEventRequest struct {
	AttemptID uint                       `json:"attempt_id" validate:"required"`
	Kind      models.ProctoringEventKind `json:"kind" validate:"required"`
	Detail    json.RawMessage            `json:"detail"`
	Severity  int                        `json:"severity" validate:"min=1,max=5"`
}

type AttemptResult struct {
	AttemptID     uint                 `json:"attempt_id"`
	QuizID        uint                 `json:"quiz_id"`
	LearnerID     string               `json:"learner_id"`
	AttemptNumber int                  `json:"attempt_number"`
	Status        models.AttemptStatus `json:"status"`
	RawPoints     float64              `json:"raw_points"`
	MaxPoints     int                  `json:"max_points"`
	Score         int                  `json:"score"`
	Passed        bool                 `json:"passed"`
	TimeSpent     int                  `json:"time_spent"`
	SubmittedAt   *time.Time           `json:"submitted_at"`
	Answers       []AnswerDetail       `json:"answers,omitempty"`
}

type LearnerResults struct {
	Best       *AttemptResult `json:"best"`
	MostRecent *AttemptResult `json:"most_recent"`
	Attempts   int            `json:"attempts"`
}

type QuizAnalyticsResponse struct {
	*models.QuizAnalytics
	Questions []repositories.QuestionStats `json:"questions"`
}
