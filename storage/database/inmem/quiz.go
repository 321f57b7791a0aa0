package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/quizroom/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func copyStrings(list []string) []string {
	return append(make([]string, 0, len(list)), list...)
}

func copyQuestion(q *quiz.Question) quiz.Question {
	res := *q
	res.Options = copyStrings(q.Options)
	res.CorrectAnswers = copyStrings(q.CorrectAnswers)
	return res
}

func copySubmission(s *quiz.Submission, withAnswers bool) quiz.Submission {
	res := *s
	res.Answers = nil
	if withAnswers {
		res.Answers = append(make([]quiz.Answer, 0, len(s.Answers)), s.Answers...)
	}
	return res
}

// Quizzes

func (repo *quizRepository) getQuiz(q *quiz.Quiz) quiz.Quiz {
	res := *q
	res.Questions = nil
	res.QuestionCount = len(repo.db.quizQs[q.ID])
	return res
}

func (repo *quizRepository) CreateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q.ID = uuid.New().String()
	q.Questions = nil
	q.QuestionCount = 0
	repo.db.quizzes[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok {
		return repo.getQuiz(q), nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]quiz.Quiz, 0)
	for _, q := range repo.db.quizzes {
		if filter.ClassroomIDs != nil && !containsAny(filter.ClassroomIDs, q.ClassroomID) {
			continue
		}
		res = append(res, repo.getQuiz(q))
	}
	sort.SliceStable(res, func(i, j int) bool {
		if !res[i].DueDate.Equal(res[j].DueDate) {
			return res[i].DueDate.Before(res[j].DueDate)
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *quizRepository) UpdateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.quizzes[q.ID]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	orig.Title = q.Title
	orig.Description = q.Description
	orig.DueDate = q.DueDate
	orig.DurationMinutes = q.DurationMinutes
	orig.IsActive = q.IsActive
	orig.UpdatedAt = q.UpdatedAt
	return repo.getQuiz(orig), nil
}

func (repo *quizRepository) DeactivateQuizzes(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		if q, ok := repo.db.quizzes[id]; ok {
			q.IsActive = false
			q.UpdatedAt = now
		}
	}
	return nil
}

func (repo *quizRepository) DeleteQuiz(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.deleteQuiz(id)
	return nil
}

// Questions

func (repo *quizRepository) CreateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q.ID = uuid.New().String()
	q.Options = copyStrings(q.Options)
	q.CorrectAnswers = copyStrings(q.CorrectAnswers)
	repo.db.questions[q.ID] = &q
	return copyQuestion(&q), nil
}

func (repo *quizRepository) GetQuestion(_ context.Context, id string) (quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return copyQuestion(q), nil
	}
	return quiz.Question{}, quiz.ErrQuestionNotFound
}

func (repo *quizRepository) QueryQuestions(_ context.Context, filter quiz.QuestionFilter) ([]quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(q *quiz.Question) bool {
		if filter.CreatorID != "" && q.CreatorID != filter.CreatorID {
			return false
		}
		if filter.IDs != nil && !containsAny(filter.IDs, q.ID) {
			return false
		}
		return true
	}

	res := make([]quiz.Question, 0)
	if filter.QuizID != "" {
		for _, id := range repo.db.quizQs[filter.QuizID] {
			if q, ok := repo.db.questions[id]; ok && keep(q) {
				res = append(res, copyQuestion(q))
			}
		}
		return res, nil
	}

	for _, q := range repo.db.questions {
		if keep(q) {
			res = append(res, copyQuestion(q))
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (repo *quizRepository) UpdateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.questions[q.ID]; !ok {
		return quiz.Question{}, quiz.ErrQuestionNotFound
	}
	q.Options = copyStrings(q.Options)
	q.CorrectAnswers = copyStrings(q.CorrectAnswers)
	repo.db.questions[q.ID] = &q
	return copyQuestion(&q), nil
}

func (repo *quizRepository) DeleteQuestion(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.deleteQuestion(id)
	return nil
}

func (repo *quizRepository) AddQuizQuestions(_ context.Context, quizID string, questionIDs ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.quizzes[quizID]; !ok {
		return quiz.ErrNotFound
	}
	ids := repo.db.quizQs[quizID]
	for _, id := range questionIDs {
		if _, ok := repo.db.questions[id]; !ok || containsAny(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	repo.db.quizQs[quizID] = ids
	return nil
}

func (repo *quizRepository) RemoveQuizQuestion(_ context.Context, quizID, questionID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ids := repo.db.quizQs[quizID]
	if !containsAny(ids, questionID) {
		return quiz.ErrQuestionNotFound
	}
	repo.db.quizQs[quizID] = removeString(ids, questionID)
	return nil
}

// Submissions

func (repo *quizRepository) CreateSubmission(_ context.Context, s quiz.Submission) (quiz.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, sub := range repo.db.submissions {
		if sub.QuizID == s.QuizID && sub.StudentID == s.StudentID {
			return quiz.Submission{}, quiz.ErrAlreadySubmitted
		}
	}
	s.ID = uuid.New().String()
	answers := make([]quiz.Answer, 0, len(s.Answers))
	for _, ans := range s.Answers {
		ans.ID = uuid.New().String()
		ans.SubmissionID = s.ID
		answers = append(answers, ans)
	}
	s.Answers = answers
	repo.db.submissions[s.ID] = &s
	return copySubmission(&s, true), nil
}

func (repo *quizRepository) GetSubmission(_ context.Context, quizID, studentID string) (quiz.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.QuizID == quizID && sub.StudentID == studentID {
			return copySubmission(sub, true), nil
		}
	}
	return quiz.Submission{}, quiz.ErrSubmissionNotFound
}

func (repo *quizRepository) QuerySubmissions(_ context.Context, filter quiz.SubmissionFilter) ([]quiz.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]quiz.Submission, 0)
	for _, sub := range repo.db.submissions {
		if filter.QuizIDs != nil && !containsAny(filter.QuizIDs, sub.QuizID) {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		res = append(res, copySubmission(sub, filter.WithAnswers))
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].SubmittedAt.Before(res[j].SubmittedAt) })
	return res, nil
}
