package models

import (
	"time"

	"gorm.io/gorm"
)

type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
	QuizStatusArchived  QuizStatus = "archived"
)

type QuizType string

const (
	QuizTypePractice      QuizType = "practice"
	QuizTypeAssessment    QuizType = "assessment"
	QuizTypeFinal         QuizType = "final"
	QuizTypeCertification QuizType = "certification"
)

// Quiz is the aggregate root: it owns its questions, settings and the
// analytics summary row. All mutation goes through the service layer;
// concurrent writers are serialized by the Version column.
type Quiz struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Type        QuizType   `json:"type" gorm:"not null;default:assessment" validate:"omitempty,quiz_type"`
	Status      QuizStatus `json:"status" gorm:"default:draft;index" validate:"omitempty,oneof=draft published archived"`

	// TotalPoints is always the sum of question point values. It is
	// recomputed whenever the question list changes and is never
	// accepted from callers.
	TotalPoints int `json:"total_points" gorm:"not null;default:0"`

	// Weight of this quiz toward the overall course grade (0.0 - 1.0).
	Weight float64 `json:"weight" gorm:"default:0" validate:"min=0,max=1"`

	// Content-linking collaborator references, read-only to this service.
	CourseID *string `json:"course_id" gorm:"size:255;index"`
	LessonID *string `json:"lesson_id" gorm:"size:255"`

	CreatedBy   string     `json:"created_by" gorm:"not null;size:255;index"`
	PublishedAt *time.Time `json:"published_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Optimistic concurrency control for the aggregate.
	Version int `json:"version" gorm:"not null;default:1"`

	// Relations
	Settings  QuizSettings `json:"settings" gorm:"foreignKey:QuizID"`
	Questions []Question   `json:"questions" gorm:"foreignKey:QuizID"`
}

type QuizSettings struct {
	QuizID uint `json:"quiz_id" gorm:"primaryKey"`

	// Time settings
	TimeLimit       int `json:"time_limit" gorm:"default:0" validate:"min=0,max=300"` // minutes, 0 = unlimited
	PerQuestionTime int `json:"per_question_time" gorm:"default:0"`                   // seconds, 0 = unlimited

	// Attempt settings
	MaxAttempts  int  `json:"max_attempts" gorm:"default:1" validate:"min=1,max=10"`
	AllowRetake  bool `json:"allow_retake" gorm:"default:true"`
	PassingScore int  `json:"passing_score" gorm:"default:60" validate:"min=0,max=100"`

	// Question display settings
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`
	ShuffleOptions   bool `json:"shuffle_options" gorm:"default:false"`
	LinearNavigation bool `json:"linear_navigation" gorm:"default:false"` // no going back when true

	// Result visibility settings
	ShowResults        bool `json:"show_results" gorm:"default:true"`
	ShowCorrectAnswers bool `json:"show_correct_answers" gorm:"default:false"`

	// Proctoring settings
	ProctoringEnabled bool `json:"proctoring_enabled" gorm:"default:false"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// RecomputeTotalPoints derives TotalPoints from the current question list.
func (q *Quiz) RecomputeTotalPoints() {
	total := 0
	for i := range q.Questions {
		total += q.Questions[i].Points
	}
	q.TotalPoints = total
}

// IsEditable reports whether structural edits are still allowed.
func (q *Quiz) IsEditable() bool {
	return q.Status != QuizStatusArchived
}
