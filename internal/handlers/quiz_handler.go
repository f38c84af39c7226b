package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/quizforge/assessment-engine/internal/services"
	"github.com/quizforge/assessment-engine/internal/utils"
)

// QuizHandler exposes quiz definition management, analytics and export.
type QuizHandler struct {
	BaseHandler
	assessmentService services.AssessmentService
	resultsService    services.ResultsService
	exportService     services.ExportService
}

func NewQuizHandler(
	assessmentService services.AssessmentService,
	resultsService services.ResultsService,
	exportService services.ExportService,
	logger utils.Logger,
) *QuizHandler {
	return &QuizHandler{
		BaseHandler:       NewBaseHandler(logger),
		assessmentService: assessmentService,
		resultsService:    resultsService,
		exportService:     exportService,
	}
}

// CreateQuiz creates a new draft quiz with its questions
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req services.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	quiz, err := h.assessmentService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quiz)
}

// GetQuiz retrieves a quiz with its questions
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	quiz, err := h.assessmentService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// ListQuizzes lists quizzes with filtering and pagination
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := h.parseQuizFilters(c)
	quizzes, total, err := h.assessmentService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quizzes": quizzes,
		"total":   total,
	})
}

// UpdateQuiz applies edits to a quiz definition
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	quiz, err := h.assessmentService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// PublishQuiz transitions a draft quiz to published
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Publishing quiz", "quiz_id", id)

	publishedAt, err := h.assessmentService.Publish(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"published_at": publishedAt})
}

// ArchiveQuiz retires a quiz from further attempts
func (h *QuizHandler) ArchiveQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.assessmentService.Archive(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Quiz archived"})
}

// DeleteQuiz removes a draft quiz
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.assessmentService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Quiz deleted"})
}

// GetQuizAnalytics returns the quiz summary row and per-question stats
func (h *QuizHandler) GetQuizAnalytics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	analytics, err := h.resultsService.GetQuizAnalytics(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// ExportQuizResults streams the results workbook
func (h *QuizHandler) ExportQuizResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	data, err := h.exportService.ExportResults(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("quiz_%d_results.xlsx", id)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *QuizHandler) parseQuizFilters(c *gin.Context) repositories.QuizFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.QuizFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if status := c.Query("status"); status != "" {
		s := models.QuizStatus(status)
		filters.Status = &s
	}
	if quizType := c.Query("type"); quizType != "" {
		qt := models.QuizType(quizType)
		filters.Type = &qt
	}
	if courseID := c.Query("course_id"); courseID != "" {
		filters.CourseID = &courseID
	}
	if createdBy := c.Query("created_by"); createdBy != "" {
		filters.CreatedBy = &createdBy
	}
	return filters
}
