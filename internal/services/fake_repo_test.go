package services

import (
	"context"
	"sync"

	"github.com/quizforge/assessment-engine/internal/models"
	"github.com/quizforge/assessment-engine/internal/repositories"
)

// fakeRepo is a stateful in-memory repositories.Repository. It keeps the
// optimistic-version semantics of the postgres implementation so service
// tests exercise the real conflict paths.
type fakeRepo struct {
	mu sync.Mutex

	quizzes   map[uint]*models.Quiz
	questions map[uint]*models.Question
	attempts  map[uint]*models.QuizAttempt
	answers   map[uint]*models.AttemptAnswer
	proctor   []*models.ProctoringEvent
	analytics map[uint]*models.QuizAnalytics

	nextQuizID     uint
	nextQuestionID uint
	nextAttemptID  uint
	nextAnswerID   uint

	// Interleaving seams: tests install these to run a competing
	// writer at a fixed point. Hooks clear themselves to avoid
	// recursing through the competing call.
	afterQuizRead       func()
	beforeAttemptCreate func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		quizzes:   make(map[uint]*models.Quiz),
		questions: make(map[uint]*models.Question),
		attempts:  make(map[uint]*models.QuizAttempt),
		answers:   make(map[uint]*models.AttemptAnswer),
		analytics: make(map[uint]*models.QuizAnalytics),
	}
}

func (r *fakeRepo) Quiz() repositories.QuizRepository           { return (*fakeQuizRepo)(r) }
func (r *fakeRepo) Question() repositories.QuestionRepository   { return (*fakeQuestionRepo)(r) }
func (r *fakeRepo) Attempt() repositories.AttemptRepository     { return (*fakeAttemptRepo)(r) }
func (r *fakeRepo) Analytics() repositories.AnalyticsRepository { return (*fakeAnalyticsRepo)(r) }

func (r *fakeRepo) WithTx(ctx context.Context, fn func(tx repositories.Repository) error) error {
	return fn(r)
}

// ===== QUIZ =====

type fakeQuizRepo fakeRepo

func (r *fakeQuizRepo) Create(_ context.Context, quiz *models.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextQuizID++
	quiz.ID = r.nextQuizID
	if quiz.Version == 0 {
		quiz.Version = 1
	}
	stored := *quiz
	r.quizzes[quiz.ID] = &stored
	return nil
}

func (r *fakeQuizRepo) GetByID(_ context.Context, id uint) (*models.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *quiz
	copied.Questions = nil
	return &copied, nil
}

func (r *fakeQuizRepo) GetByIDWithQuestions(_ context.Context, id uint) (*models.Quiz, error) {
	r.mu.Lock()
	quiz, ok := r.quizzes[id]
	if !ok {
		r.mu.Unlock()
		return nil, repositories.ErrNotFound
	}
	copied := *quiz
	copied.Questions = nil
	for _, q := range r.questions {
		if q.QuizID == id {
			copied.Questions = append(copied.Questions, *q)
		}
	}
	sortQuestions(copied.Questions)
	r.mu.Unlock()

	if hook := r.afterQuizRead; hook != nil {
		hook()
	}
	return &copied, nil
}

func (r *fakeQuizRepo) List(_ context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Quiz
	for _, quiz := range r.quizzes {
		if filters.Status != nil && quiz.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != nil && quiz.CreatedBy != *filters.CreatedBy {
			continue
		}
		copied := *quiz
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *fakeQuizRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.quizzes, id)
	return nil
}

func (r *fakeQuizRepo) UpdateVersioned(_ context.Context, quiz *models.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.quizzes[quiz.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if current.Version != quiz.Version {
		return repositories.ErrVersionConflict
	}
	quiz.Version++
	stored := *quiz
	r.quizzes[quiz.ID] = &stored
	return nil
}

// ===== QUESTION =====

type fakeQuestionRepo fakeRepo

func (r *fakeQuestionRepo) CreateBatch(_ context.Context, questions []*models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range questions {
		r.nextQuestionID++
		q.ID = r.nextQuestionID
		stored := *q
		r.questions[q.ID] = &stored
	}
	return nil
}

func (r *fakeQuestionRepo) GetByID(_ context.Context, id uint) (*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeQuestionRepo) GetByQuiz(_ context.Context, quizID uint) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Question
	for _, q := range r.questions {
		if q.QuizID == quizID {
			copied := *q
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) Update(_ context.Context, question *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[question.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *question
	r.questions[question.ID] = &stored
	return nil
}

func (r *fakeQuestionRepo) DeleteByQuiz(_ context.Context, quizID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, q := range r.questions {
		if q.QuizID == quizID {
			delete(r.questions, id)
		}
	}
	return nil
}

func (r *fakeQuestionRepo) UpdateStats(_ context.Context, question *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.questions[question.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	current.TotalAttempts = question.TotalAttempts
	current.CorrectAttempts = question.CorrectAttempts
	current.AvgResponseTime = question.AvgResponseTime
	current.Difficulty = question.Difficulty
	return nil
}

// ===== ATTEMPT =====

type fakeAttemptRepo fakeRepo

func (r *fakeAttemptRepo) Create(_ context.Context, attempt *models.QuizAttempt) error {
	if hook := r.beforeAttemptCreate; hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.QuizID == attempt.QuizID &&
			existing.LearnerID == attempt.LearnerID &&
			existing.AttemptNumber == attempt.AttemptNumber {
			return repositories.ErrDuplicateKey
		}
	}
	r.nextAttemptID++
	attempt.ID = r.nextAttemptID
	stored := *attempt
	r.attempts[attempt.ID] = &stored
	return nil
}

func (r *fakeAttemptRepo) GetByID(_ context.Context, id uint) (*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *attempt
	copied.Answers = nil
	return &copied, nil
}

func (r *fakeAttemptRepo) GetByIDWithAnswers(_ context.Context, id uint) (*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *attempt
	copied.Answers = nil
	for _, a := range r.answers {
		if a.AttemptID == id {
			copied.Answers = append(copied.Answers, *a)
		}
	}
	return &copied, nil
}

func (r *fakeAttemptRepo) Update(_ context.Context, attempt *models.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *attempt
	stored.Answers = nil
	r.attempts[attempt.ID] = &stored
	return nil
}

func (r *fakeAttemptRepo) List(_ context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range r.attempts {
		if filters.QuizID != nil && attempt.QuizID != *filters.QuizID {
			continue
		}
		if filters.LearnerID != nil && attempt.LearnerID != *filters.LearnerID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		copied := *attempt
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAttemptRepo) GetActive(_ context.Context, quizID uint, learnerID string) (*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID && attempt.LearnerID == learnerID && attempt.Status == models.AttemptInProgress {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAttemptRepo) CountByLearner(_ context.Context, quizID uint, learnerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID && attempt.LearnerID == learnerID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptRepo) GetByQuiz(_ context.Context, quizID uint) ([]*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) GetByLearner(_ context.Context, quizID uint, learnerID string) ([]*models.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID && attempt.LearnerID == learnerID {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) SaveAnswers(_ context.Context, answers []*models.AttemptAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, answer := range answers {
		if answer.ID == 0 {
			for _, existing := range r.answers {
				if existing.AttemptID == answer.AttemptID && existing.QuestionID == answer.QuestionID {
					answer.ID = existing.ID
					break
				}
			}
		}
		if answer.ID == 0 {
			r.nextAnswerID++
			answer.ID = r.nextAnswerID
		}
		stored := *answer
		r.answers[answer.ID] = &stored
	}
	return nil
}

func (r *fakeAttemptRepo) AppendProctoringEvent(_ context.Context, event *models.ProctoringEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *event
	r.proctor = append(r.proctor, &stored)
	return nil
}

// ===== ANALYTICS =====

type fakeAnalyticsRepo fakeRepo

func (r *fakeAnalyticsRepo) Upsert(_ context.Context, analytics *models.QuizAnalytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *analytics
	r.analytics[analytics.QuizID] = &stored
	return nil
}

func (r *fakeAnalyticsRepo) GetByQuiz(_ context.Context, quizID uint) (*models.QuizAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary, ok := r.analytics[quizID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *summary
	return &copied, nil
}

func sortQuestions(questions []models.Question) {
	for i := 1; i < len(questions); i++ {
		for j := i; j > 0 && questions[j].Order < questions[j-1].Order; j-- {
			questions[j], questions[j-1] = questions[j-1], questions[j]
		}
	}
}
