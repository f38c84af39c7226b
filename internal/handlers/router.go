package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/quizforge/assessment-engine/internal/services"
	"github.com/quizforge/assessment-engine/internal/utils"
)

type HandlerManager struct {
	quizHandler    *QuizHandler
	attemptHandler *AttemptHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		quizHandler: NewQuizHandler(
			serviceManager.Assessment(),
			serviceManager.Results(),
			serviceManager.Export(),
			logger,
		),
		attemptHandler: NewAttemptHandler(
			serviceManager.Attempt(),
			serviceManager.Results(),
			logger,
		),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Quiz definition routes
		quizzes := v1.Group("/quizzes")
		{
			quizzes.POST("", hm.quizHandler.CreateQuiz)
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.PUT("/:id", hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", hm.quizHandler.DeleteQuiz)
			quizzes.POST("/:id/publish", hm.quizHandler.PublishQuiz)
			quizzes.POST("/:id/archive", hm.quizHandler.ArchiveQuiz)
			quizzes.GET("/:id/analytics", hm.quizHandler.GetQuizAnalytics)
			quizzes.GET("/:id/export", hm.quizHandler.ExportQuizResults)

			// Learner session entry points
			quizzes.POST("/:id/attempts", hm.attemptHandler.StartAttempt)
			quizzes.GET("/:id/results", hm.attemptHandler.GetLearnerResults)
		}

		// Attempt lifecycle routes
		attempts := v1.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/abandon", hm.attemptHandler.AbandonAttempt)
			attempts.POST("/:id/expire", hm.attemptHandler.ExpireAttempt)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
			attempts.POST("/:id/proctoring-events", hm.attemptHandler.RecordProctoringEvent)
			attempts.GET("/:id/result", hm.attemptHandler.GetAttemptResult)

			// Manual grading
			attempts.POST("/:id/answers/:question_id/grade", hm.attemptHandler.GradeAnswer)
		}
	}
}
