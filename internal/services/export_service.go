package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quizforge/assessment-engine/internal/auth"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/xuri/excelize/v2"
)

type exportService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	authorizer auth.Authorizer
}

func NewExportService(repo repositories.Repository, logger *slog.Logger, authorizer auth.Authorizer) ExportService {
	return &exportService{
		repo:       repo,
		logger:     logger,
		authorizer: authorizer,
	}
}

// ExportResults renders every attempt against a quiz as an Excel
// workbook with a Results sheet and an Analytics summary sheet.
func (s *exportService) ExportResults(ctx context.Context, quizID uint, userID string) ([]byte, error) {
	s.logger.Info("Exporting quiz results", "quiz_id", quizID, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	canManage, err := s.authorizer.CanManage(ctx, userID, quiz)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !canManage {
		return nil, NewPolicyError(userID, quizID, "quiz", "export_results", "not owner or insufficient permissions")
	}

	attempts, err := s.repo.Attempt().GetByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	f := excelize.NewFile()
	if err := s.writeResultsSheet(f, quiz, attempts); err != nil {
		return nil, err
	}
	if err := s.writeAnalyticsSheet(ctx, f, quizID); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *exportService) writeResultsSheet(f *excelize.File, quiz *models.Quiz, attempts []*models.QuizAttempt) error {
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Learner ID", "Attempt", "Status", "Started At", "Submitted At",
		"Raw Points", "Max Points", "Score (%)", "Result", "Time Spent (minutes)",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		row := []interface{}{
			attempt.LearnerID,
			attempt.AttemptNumber,
			string(attempt.Status),
			attempt.StartedAt.Format("2006-01-02 15:04:05"),
		}

		if attempt.SubmittedAt != nil {
			row = append(row, attempt.SubmittedAt.Format("2006-01-02 15:04:05"))
		} else {
			row = append(row, "")
		}

		// Held and abandoned attempts carry no authoritative score.
		if attempt.Status.IsFinalized() {
			row = append(row, attempt.RawPoints, attempt.MaxPoints, attempt.Score)
			if attempt.Passed {
				row = append(row, "Pass")
			} else {
				row = append(row, "Fail")
			}
		} else {
			row = append(row, "", "", "", "")
		}

		row = append(row, attempt.TimeSpent/60)

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}

func (s *exportService) writeAnalyticsSheet(ctx context.Context, f *excelize.File, quizID uint) error {
	summary, err := s.repo.Analytics().GetByQuiz(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to get analytics: %w", err)
	}

	sheetName := "Analytics"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Total Attempts", summary.TotalAttempts},
		{"Completed Attempts", summary.CompletedAttempts},
		{"Abandoned Attempts", summary.AbandonedAttempts},
		{"Pending Review", summary.PendingReview},
		{"Average Score", summary.AverageScore},
		{"Highest Score", summary.HighestScore},
		{"Lowest Score", summary.LowestScore},
		{"Pass Rate", summary.PassRate},
		{"Abandonment Rate", summary.AbandonmentRate},
		{"Average Duration (minutes)", summary.AverageDuration},
		{"Difficulty Rating", summary.DifficultyRating},
		{"Last Computed", summary.LastComputedAt.Format("2006-01-02 15:04:05")},
	}
	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+1)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}
