package grading

import (
	"encoding/json"
	"testing"

	apperrors "github.com/quizforge/assessment-engine/internal/errors"
	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func question(t *testing.T, qType models.QuestionType, points int, content interface{}) *models.Question {
	t.Helper()
	return &models.Question{
		ID:      1,
		Type:    qType,
		Points:  points,
		Content: datatypes.JSON(mustJSON(t, content)),
	}
}

func choiceQuestion(t *testing.T, qType models.QuestionType, points int, correct ...string) *models.Question {
	t.Helper()
	correctSet := make(map[string]bool)
	for _, id := range correct {
		correctSet[id] = true
	}
	content := models.ChoiceContent{Options: []models.ChoiceOption{
		{ID: "A", Text: "alpha", Correct: correctSet["A"], Order: 1},
		{ID: "B", Text: "beta", Correct: correctSet["B"], Order: 2},
		{ID: "C", Text: "gamma", Correct: correctSet["C"], Order: 3},
	}}
	return question(t, qType, points, content)
}

func TestGrade_MultipleChoice(t *testing.T) {
	q := choiceQuestion(t, models.MultipleChoice, 10, "B", "C")

	tests := []struct {
		name     string
		selected []string
		correct  bool
	}{
		{"exact match", []string{"B", "C"}, true},
		{"order does not matter", []string{"C", "B"}, true},
		{"subset earns nothing", []string{"B"}, false},
		{"superset earns nothing", []string{"A", "B", "C"}, false},
		{"wrong set", []string{"A"}, false},
		{"duplicate selection", []string{"B", "B"}, false},
		{"empty selection", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := mustJSON(t, models.ChoiceAnswer{SelectedOptions: tt.selected})
			result, err := Grade(q, response)
			require.NoError(t, err)
			assert.Equal(t, tt.correct, result.Correct)
			if tt.correct {
				assert.Equal(t, 10.0, result.PointsEarned)
			} else {
				assert.Zero(t, result.PointsEarned)
			}
			assert.False(t, result.PendingReview)
		})
	}
}

func TestGrade_SingleChoice(t *testing.T) {
	q := choiceQuestion(t, models.SingleChoice, 5, "A")

	result, err := Grade(q, mustJSON(t, models.ChoiceAnswer{SelectedOptions: []string{"A"}}))
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 5.0, result.PointsEarned)

	result, err = Grade(q, mustJSON(t, models.ChoiceAnswer{SelectedOptions: []string{"B"}}))
	require.NoError(t, err)
	assert.False(t, result.Correct)
}

func TestGrade_ChoiceWithNoCorrectOption(t *testing.T) {
	q := choiceQuestion(t, models.MultipleChoice, 10)

	_, err := Grade(q, mustJSON(t, models.ChoiceAnswer{SelectedOptions: []string{"A"}}))
	var die *apperrors.DataIntegrityError
	require.ErrorAs(t, err, &die)
}

func TestGrade_TrueFalse(t *testing.T) {
	q := question(t, models.TrueFalse, 2, models.TrueFalseContent{Answer: false})

	result, err := Grade(q, mustJSON(t, models.TrueFalseAnswer{Answer: false}))
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 2.0, result.PointsEarned)

	result, err = Grade(q, mustJSON(t, models.TrueFalseAnswer{Answer: true}))
	require.NoError(t, err)
	assert.False(t, result.Correct)
}

func TestGrade_TrueFalse_EmptyResponseIsNotAnAnswer(t *testing.T) {
	// The key is "false"; a missing payload must not be read as a
	// submitted "false".
	q := question(t, models.TrueFalse, 2, models.TrueFalseContent{Answer: false})

	result, err := Grade(q, nil)
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Zero(t, result.PointsEarned)
}

func TestGrade_FillBlank(t *testing.T) {
	q := question(t, models.FillBlank, 3, models.FillBlankContent{
		AcceptedAnswers: []string{"Paris", "paris, france"},
	})

	tests := []struct {
		name    string
		text    string
		correct bool
	}{
		{"exact", "Paris", true},
		{"case insensitive", "PARIS", true},
		{"trimmed", "  paris  ", true},
		{"second accepted answer", "Paris, France", true},
		{"wrong", "London", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Grade(q, mustJSON(t, models.FillBlankAnswer{Text: tt.text}))
			require.NoError(t, err)
			assert.Equal(t, tt.correct, result.Correct)
		})
	}
}

func TestGrade_EssayAndCodeAreHeldForReview(t *testing.T) {
	essay := question(t, models.Essay, 10, models.EssayContent{})
	result, err := Grade(essay, mustJSON(t, models.EssayAnswer{Text: "my answer", WordCount: 2}))
	require.NoError(t, err)
	assert.True(t, result.PendingReview)
	assert.False(t, result.Correct)
	assert.Zero(t, result.PointsEarned)

	code := question(t, models.Code, 20, models.CodeContent{
		Language:          "go",
		ReferenceSolution: "package main",
		TestCases:         []models.CodeTestCase{{Input: "1", ExpectedOutput: "1"}},
	})
	result, err = Grade(code, mustJSON(t, models.CodeAnswer{Language: "go", SourceCode: "package main"}))
	require.NoError(t, err)
	assert.True(t, result.PendingReview)
}

func TestGrade_Matching(t *testing.T) {
	q := question(t, models.Matching, 8, models.MatchingContent{
		LeftItems:  []models.MatchItem{{ID: "L1"}, {ID: "L2"}},
		RightItems: []models.MatchItem{{ID: "R1"}, {ID: "R2"}},
		CorrectPairs: []models.MatchPair{
			{LeftID: "L1", RightID: "R1"},
			{LeftID: "L2", RightID: "R2"},
		},
	})

	tests := []struct {
		name    string
		pairs   []models.MatchPair
		correct bool
	}{
		{"all pairs matched", []models.MatchPair{{LeftID: "L2", RightID: "R2"}, {LeftID: "L1", RightID: "R1"}}, true},
		{"one pair swapped", []models.MatchPair{{LeftID: "L1", RightID: "R2"}, {LeftID: "L2", RightID: "R1"}}, false},
		{"incomplete", []models.MatchPair{{LeftID: "L1", RightID: "R1"}}, false},
		{"duplicate left side", []models.MatchPair{{LeftID: "L1", RightID: "R1"}, {LeftID: "L1", RightID: "R1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Grade(q, mustJSON(t, models.MatchingAnswer{Pairs: tt.pairs}))
			require.NoError(t, err)
			assert.Equal(t, tt.correct, result.Correct)
		})
	}
}

func TestGrade_Ordering(t *testing.T) {
	q := question(t, models.Ordering, 6, models.OrderingContent{
		Items:        []models.OrderItem{{ID: "1"}, {ID: "2"}, {ID: "3"}},
		CorrectOrder: []string{"1", "2", "3"},
	})

	result, err := Grade(q, mustJSON(t, models.OrderingAnswer{Order: []string{"1", "2", "3"}}))
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 6.0, result.PointsEarned)

	result, err = Grade(q, mustJSON(t, models.OrderingAnswer{Order: []string{"1", "3", "2"}}))
	require.NoError(t, err)
	assert.False(t, result.Correct)

	result, err = Grade(q, mustJSON(t, models.OrderingAnswer{Order: []string{"1", "2"}}))
	require.NoError(t, err)
	assert.False(t, result.Correct)
}

func TestGrade_MalformedAnswerKey(t *testing.T) {
	q := &models.Question{
		ID:      7,
		Type:    models.MultipleChoice,
		Points:  10,
		Content: datatypes.JSON(`{"options": "not-an-array"}`),
	}

	_, err := Grade(q, mustJSON(t, models.ChoiceAnswer{SelectedOptions: []string{"A"}}))
	var die *apperrors.DataIntegrityError
	require.ErrorAs(t, err, &die)
	assert.Equal(t, uint(7), die.ID)
}

func TestGrade_MalformedResponsePayload(t *testing.T) {
	q := choiceQuestion(t, models.MultipleChoice, 10, "A")

	_, err := Grade(q, json.RawMessage(`{"selected_options": 42}`))
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestApplyManualScore(t *testing.T) {
	q := question(t, models.Essay, 10, models.EssayContent{})

	tests := []struct {
		name    string
		points  float64
		correct bool
		wantErr bool
	}{
		{"at threshold", 6, true, false},
		{"above threshold", 7, true, false},
		{"below threshold", 5, false, false},
		{"full marks", 10, true, false},
		{"zero", 0, false, false},
		{"negative", -1, false, true},
		{"over maximum", 11, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ApplyManualScore(q, tt.points)
			if tt.wantErr {
				var ve *apperrors.ValidationError
				require.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.correct, result.Correct)
			assert.Equal(t, tt.points, result.PointsEarned)
			assert.False(t, result.PendingReview)
		})
	}
}

func TestScoreAttempt(t *testing.T) {
	assert.Equal(t, 50, ScoreAttempt(5, 10))
	assert.Equal(t, 100, ScoreAttempt(10, 10))
	assert.Equal(t, 0, ScoreAttempt(0, 10))
	assert.Equal(t, 33, ScoreAttempt(1, 3))
	assert.Equal(t, 67, ScoreAttempt(2, 3))
	assert.Equal(t, 0, ScoreAttempt(5, 0))
}
