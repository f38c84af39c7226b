package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_ComputesTotalPoints(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Assessment().Create(context.Background(), &CreateQuizRequest{
		Title:    "Weekly check",
		Settings: defaultSettings(),
		Questions: []QuestionRequest{
			{Text: "Pick A", Type: models.SingleChoice, Points: 10, Content: choiceContent(t, "A")},
			{Text: "Pick B and C", Type: models.MultipleChoice, Points: 15, Content: choiceContent(t, "B", "C")},
			{Text: "True?", Type: models.TrueFalse, Points: 5, Content: marshal(t, models.TrueFalseContent{Answer: true})},
		},
	}, "instructor-1")
	require.NoError(t, err)

	assert.Equal(t, models.QuizStatusDraft, resp.Quiz.Status)
	assert.Equal(t, 30, resp.Quiz.TotalPoints)
	assert.Nil(t, resp.Quiz.PublishedAt)
}

func TestCreate_RejectsInvalidQuestionContent(t *testing.T) {
	env := newTestEnv(t)

	// A single-choice question must have exactly one correct option.
	_, err := env.svc.Assessment().Create(context.Background(), &CreateQuizRequest{
		Title:    "Broken quiz",
		Settings: defaultSettings(),
		Questions: []QuestionRequest{
			{Text: "Pick", Type: models.SingleChoice, Points: 10, Content: choiceContent(t, "A", "B")},
		},
	}, "instructor-1")
	assert.True(t, IsValidation(err), "expected validation error, got %v", err)
}

func TestCreate_RejectsNonManagers(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Assessment().Create(context.Background(), &CreateQuizRequest{
		Title:    "Nope",
		Settings: defaultSettings(),
		Questions: []QuestionRequest{
			{Text: "Pick A", Type: models.SingleChoice, Points: 10, Content: choiceContent(t, "A")},
		},
	}, "learner-1")
	assert.True(t, IsPolicy(err), "expected policy error, got %v", err)
}

func TestPublish_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	stored, err := env.repo.Quiz().GetByID(ctx, quiz.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PublishedAt)
	first := *stored.PublishedAt

	// Publishing again keeps the original timestamp.
	again, err := env.svc.Assessment().Publish(ctx, quiz.ID, "instructor-1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.True(t, again.Equal(first))
}

func TestPublish_ArchivedQuizRejected(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	require.NoError(t, env.svc.Assessment().Archive(ctx, quiz.ID, "instructor-1"))

	_, err := env.svc.Assessment().Publish(ctx, quiz.ID, "instructor-1")
	assert.ErrorIs(t, err, ErrQuizArchived)
}

func TestDelete_PublishedQuizRejected(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())

	err := env.svc.Assessment().Delete(context.Background(), quiz.ID, "instructor-1")
	assert.True(t, IsStateConflict(err), "expected state conflict, got %v", err)
}

func TestDelete_DraftRemovesQuestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.Assessment().Create(ctx, &CreateQuizRequest{
		Title:    "Scratch",
		Settings: defaultSettings(),
		Questions: []QuestionRequest{
			{Text: "Pick A", Type: models.SingleChoice, Points: 10, Content: choiceContent(t, "A")},
		},
	}, "instructor-1")
	require.NoError(t, err)

	require.NoError(t, env.svc.Assessment().Delete(ctx, resp.Quiz.ID, "instructor-1"))

	_, err = env.repo.Quiz().GetByID(ctx, resp.Quiz.ID)
	assert.True(t, repositories.IsNotFoundError(err))
	questions, err := env.repo.Question().GetByQuiz(ctx, resp.Quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestUpdate_ReplacesQuestionsBeforeAnyAttempt(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	resp, err := env.svc.Assessment().Update(ctx, quiz.ID, &UpdateQuizRequest{
		Questions: []QuestionRequest{
			{Text: "Only question", Type: models.SingleChoice, Points: 25, Order: 1, Content: choiceContent(t, "B")},
		},
	}, "instructor-1")
	require.NoError(t, err)

	assert.Equal(t, 25, resp.Quiz.TotalPoints)
	require.Len(t, resp.Quiz.Questions, 1)
}

func TestUpdate_LockedAfterTerminalAttempt(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	started := startAttempt(t, env, quiz.ID, "learner-1")
	_, err := env.svc.Attempt().Submit(ctx, &SubmitAttemptRequest{AttemptID: started.AttemptID}, "learner-1")
	require.NoError(t, err)

	stored, err := env.repo.Quiz().GetByIDWithQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)

	// Changing a question's points is frozen.
	reqs := make([]QuestionRequest, len(stored.Questions))
	for i, q := range stored.Questions {
		reqs[i] = QuestionRequest{
			ID: q.ID, Text: q.Text, Type: q.Type, Points: q.Points, Order: q.Order,
			Content: json.RawMessage(q.Content),
		}
	}
	reqs[0].Points = 50
	_, err = env.svc.Assessment().Update(ctx, quiz.ID, &UpdateQuizRequest{Questions: reqs}, "instructor-1")
	assert.ErrorIs(t, err, ErrQuizLocked)

	// Dropping a question is frozen too.
	_, err = env.svc.Assessment().Update(ctx, quiz.ID, &UpdateQuizRequest{Questions: reqs[:1]}, "instructor-1")
	assert.ErrorIs(t, err, ErrQuizLocked)
}

func TestUpdate_TextEditsAllowedAfterTerminalAttempt(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	started := startAttempt(t, env, quiz.ID, "learner-1")
	_, err := env.svc.Attempt().Submit(ctx, &SubmitAttemptRequest{AttemptID: started.AttemptID}, "learner-1")
	require.NoError(t, err)

	stored, err := env.repo.Quiz().GetByIDWithQuestions(ctx, quiz.ID)
	require.NoError(t, err)

	reqs := make([]QuestionRequest, len(stored.Questions))
	for i, q := range stored.Questions {
		reqs[i] = QuestionRequest{
			ID: q.ID, Text: q.Text, Type: q.Type, Points: q.Points, Order: q.Order,
			Content: json.RawMessage(q.Content),
		}
	}
	reqs[0].Text = "Reworded question"

	resp, err := env.svc.Assessment().Update(ctx, quiz.ID, &UpdateQuizRequest{Questions: reqs}, "instructor-1")
	require.NoError(t, err)
	assert.Equal(t, 20, resp.Quiz.TotalPoints)
}

func TestUpdate_SettingsStayEditableWhenLocked(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	started := startAttempt(t, env, quiz.ID, "learner-1")
	_, err := env.svc.Attempt().Submit(ctx, &SubmitAttemptRequest{AttemptID: started.AttemptID}, "learner-1")
	require.NoError(t, err)

	settings := defaultSettings()
	settings.MaxAttempts = 5
	resp, err := env.svc.Assessment().Update(ctx, quiz.ID, &UpdateQuizRequest{Settings: &settings}, "instructor-1")
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Quiz.Settings.MaxAttempts)
}

func TestUpdateVersioned_StaleWriteConflicts(t *testing.T) {
	env := newTestEnv(t)
	quiz := publishedQuiz(t, env, defaultSettings())
	ctx := context.Background()

	stale, err := env.repo.Quiz().GetByID(ctx, quiz.ID)
	require.NoError(t, err)
	fresh, err := env.repo.Quiz().GetByID(ctx, quiz.ID)
	require.NoError(t, err)

	require.NoError(t, env.repo.Quiz().UpdateVersioned(ctx, fresh))
	err = env.repo.Quiz().UpdateVersioned(ctx, stale)
	assert.True(t, repositories.IsVersionConflict(err))
}
