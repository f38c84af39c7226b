package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/quizforge/assessment-engine/internal/services"
	"github.com/quizforge/assessment-engine/internal/utils"
)

// AttemptHandler exposes the attempt lifecycle, manual grading and
// result lookups.
type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	resultsService services.ResultsService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	resultsService services.ResultsService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		resultsService: resultsService,
	}
}

// StartAttempt opens a new attempt against a published quiz
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Starting attempt", "quiz_id", quizID)

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// SubmitAttempt grades and finalizes an in-progress attempt
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.AttemptID = attemptID

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AbandonAttempt closes an attempt without grading
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.attemptService.Abandon(c.Request.Context(), attemptID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt abandoned"})
}

// ExpireAttempt force-finalizes an attempt past its deadline
func (h *AttemptHandler) ExpireAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.attemptService.Expire(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTimeRemaining returns the seconds left on an in-progress attempt
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	remaining, err := h.attemptService.GetTimeRemaining(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"seconds_remaining": remaining})
}

// RecordProctoringEvent appends a suspicious-activity entry
func (h *AttemptHandler) RecordProctoringEvent(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.ProctoringEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.AttemptID = attemptID

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.attemptService.RecordProctoringEvent(c.Request.Context(), &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "Event recorded"})
}

// GradeAnswer records an instructor's score for one held answer
func (h *AttemptHandler) GradeAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req services.GradeAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.AttemptID = attemptID
	req.QuestionID = questionID

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Manual grading", "attempt_id", attemptID, "question_id", questionID)

	result, err := h.attemptService.GradeAnswer(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAttempts lists attempts with filtering and pagination
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, total, err := h.attemptService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    total,
	})
}

// GetAttemptResult returns one attempt's outcome
func (h *AttemptHandler) GetAttemptResult(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	result, err := h.resultsService.GetAttemptResult(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLearnerResults summarizes the caller's history against a quiz
func (h *AttemptHandler) GetLearnerResults(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	results, err := h.resultsService.GetLearnerResults(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if quizIDStr := c.Query("quiz_id"); quizIDStr != "" {
		if quizID := h.parseIntQuery(c, "quiz_id", 0); quizID > 0 {
			id := uint(quizID)
			filters.QuizID = &id
		}
	}
	if learnerID := c.Query("learner_id"); learnerID != "" {
		filters.LearnerID = &learnerID
	}
	if status := c.Query("status"); status != "" {
		s := models.AttemptStatus(status)
		filters.Status = &s
	}
	return filters
}
