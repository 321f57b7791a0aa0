package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("quiz not found")
	ErrQuestionNotFound   = core.NewNotFoundError("question not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrNotEnrolled        = core.NewPermissionError("you are not enrolled in this class")
	ErrQuizInactive       = core.NewRequestError("this quiz is not active")
	ErrQuizPastDue        = core.NewRequestError("this quiz is past its due date")
	ErrAlreadySubmitted   = core.NewRequestError("you have already submitted this quiz")
	ErrNoQuestions        = core.NewRequestError("this quiz has no questions")
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// QueryQuizzes returns quizzes ordered by due date.
		QueryQuizzes(ctx context.Context, filter QueryFilter) ([]Quiz, error)
		UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		DeactivateQuizzes(ctx context.Context, ids ...string) error
		DeleteQuiz(ctx context.Context, id string) error

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		// QueryQuestions returns quiz questions in quiz order when filtering on QuizID, newest first otherwise.
		QueryQuestions(ctx context.Context, filter QuestionFilter) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, id string) error
		// AddQuizQuestions appends the questions to the quiz, skipping those already in it.
		AddQuizQuestions(ctx context.Context, quizID string, questionIDs ...string) error
		RemoveQuizQuestion(ctx context.Context, quizID, questionID string) error

		// CreateSubmission stores the submission and its answers atomically.
		// It returns ErrAlreadySubmitted if the student already submitted the quiz.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, quizID, studentID string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
	}

	Service interface {
		CreateQuiz(ctx context.Context, teacher user.User, classroomID string, nq NewQuiz) (QuizCreated, error)
		Get(ctx context.Context, id string) (Quiz, error)
		// GetForUser returns the quiz if `usr` owns its classroom (with questions) or is enrolled in it.
		GetForUser(ctx context.Context, usr user.User, id string) (Quiz, error)
		// GetOwned returns the quiz and its classroom if `usr` is the teacher owning the classroom.
		GetOwned(ctx context.Context, usr user.User, id string) (Quiz, classroom.Classroom, error)
		// ListForClassroom returns the classroom quizzes by due date, deactivating the overdue ones.
		ListForClassroom(ctx context.Context, classroomID string) ([]Quiz, error)
		Update(ctx context.Context, q Quiz, uq UpdateQuiz) (Quiz, error)
		SetActive(ctx context.Context, q Quiz, active bool) (Quiz, error)
		Delete(ctx context.Context, q Quiz) error

		QuestionBank(ctx context.Context, teacher user.User) ([]Question, error)
		Questions(ctx context.Context, quizID string) ([]Question, error)
		// GetOwnedQuestion returns the question if `usr` created it.
		GetOwnedQuestion(ctx context.Context, usr user.User, id string) (Question, error)
		CreateQuestion(ctx context.Context, q Quiz, creator user.User, qd QuestionData) (Question, error)
		UpdateQuestion(ctx context.Context, question Question, qd QuestionData) (Question, error)
		DeleteQuestion(ctx context.Context, question Question) error
		AddExistingQuestions(ctx context.Context, q Quiz, teacher user.User, questionIDs []string) ([]Question, error)
		RemoveQuestion(ctx context.Context, q Quiz, questionID string) error

		// Start checks that the student may take the quiz and returns it with its questions, answers hidden.
		Start(ctx context.Context, student user.User, quizID string) (Quiz, error)
		Submit(ctx context.Context, student user.User, quizID string, sq SubmitQuiz) (SubmissionResult, error)
		GetResult(ctx context.Context, student user.User, quizID string) (SubmissionResult, error)
		Submissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
	}

	service struct {
		repo       Repository
		classrooms classroom.Reader
		events     core.EventPublisher
		nowFunc    func() time.Time // mockable
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, classrooms classroom.Reader, events core.EventPublisher) Service {
	return &service{
		repo:       repo,
		classrooms: classrooms,
		events:     events,
		nowFunc:    time.Now,
	}
}

func (svc *service) now() time.Time { return svc.nowFunc().UTC() }

func (svc *service) ownedClassroom(ctx context.Context, usr user.User, classroomID string) (classroom.Classroom, error) {
	c, err := svc.classrooms.Get(ctx, classroomID)
	if err != nil {
		return classroom.Classroom{}, err
	}
	if !c.IsOwnedBy(usr) {
		return classroom.Classroom{}, core.ErrPermissionDenied
	}
	return c, nil
}

func (svc *service) CreateQuiz(ctx context.Context, teacher user.User, classroomID string, nq NewQuiz) (QuizCreated, error) {
	if !teacher.IsTeacher() {
		return QuizCreated{}, core.ErrPermissionDenied
	}
	if _, err := svc.ownedClassroom(ctx, teacher, classroomID); err != nil {
		return QuizCreated{}, err
	}

	now := svc.now()
	active := true
	if nq.IsActive != nil {
		active = *nq.IsActive
	}
	q, err := svc.repo.CreateQuiz(ctx, Quiz{
		ClassroomID:     classroomID,
		Title:           nq.Title,
		Description:     nq.Description,
		DueDate:         nq.DueDate.UTC(),
		DurationMinutes: nq.DurationMinutes,
		IsActive:        active,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return QuizCreated{}, errors.Wrap(err, "creating quiz")
	}

	res := QuizCreated{Quiz: q, Warnings: append([]string{}, nq.warnings...)}
	ids := make([]string, 0, len(nq.staged))
	for _, qd := range nq.staged {
		if !qd.isStagedNew() {
			// existing questions must belong to the teacher
			question, err := svc.repo.GetQuestion(ctx, qd.ID)
			if err != nil || question.CreatorID != teacher.ID {
				if err != nil && !core.IsNotFound(err) {
					return QuizCreated{}, errors.Wrap(err, "finding question")
				}
				res.Warnings = append(res.Warnings, fmt.Sprintf("question %s was skipped: not found", qd.ID))
				continue
			}
			ids = append(ids, question.ID)
			continue
		}

		question, err := svc.repo.CreateQuestion(ctx, Question{
			CreatorID:      teacher.ID,
			Text:           qd.Text,
			Type:           qd.Type,
			Options:        qd.Options,
			CorrectAnswers: qd.CorrectAnswers,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return QuizCreated{}, errors.Wrap(err, "creating question")
		}
		ids = append(ids, question.ID)
	}

	if len(ids) > 0 {
		if err = svc.repo.AddQuizQuestions(ctx, q.ID, ids...); err != nil {
			return QuizCreated{}, errors.Wrap(err, "adding quiz questions")
		}
	}
	if res.Quiz.Questions, err = svc.Questions(ctx, q.ID); err != nil {
		return QuizCreated{}, err
	}
	res.Quiz.QuestionCount = len(res.Quiz.Questions)
	return res, nil
}

func (svc *service) Get(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) GetForUser(ctx context.Context, usr user.User, id string) (Quiz, error) {
	q, err := svc.Get(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	c, err := svc.classrooms.Get(ctx, q.ClassroomID)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "finding quiz classroom")
	}

	switch {
	case c.IsOwnedBy(usr), usr.IsAdmin():
		if q.Questions, err = svc.Questions(ctx, q.ID); err != nil {
			return Quiz{}, err
		}
	case usr.IsStudent():
		enrolled, err := svc.classrooms.IsEnrolled(ctx, c.ID, usr.ID)
		if err != nil {
			return Quiz{}, errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return Quiz{}, ErrNotFound
		}
	default:
		return Quiz{}, ErrNotFound
	}
	return svc.deactivateIfOverdue(ctx, q)
}

func (svc *service) GetOwned(ctx context.Context, usr user.User, id string) (Quiz, classroom.Classroom, error) {
	q, err := svc.Get(ctx, id)
	if err != nil {
		return Quiz{}, classroom.Classroom{}, err
	}
	c, err := svc.classrooms.Get(ctx, q.ClassroomID)
	if err != nil {
		return Quiz{}, classroom.Classroom{}, errors.Wrap(err, "finding quiz classroom")
	}
	if !(c.IsOwnedBy(usr) || usr.IsAdmin()) {
		return Quiz{}, classroom.Classroom{}, core.ErrPermissionDenied
	}
	return q, c, nil
}

func (svc *service) deactivateIfOverdue(ctx context.Context, q Quiz) (Quiz, error) {
	if q.IsActive && q.IsPastDue(svc.now()) {
		if err := svc.repo.DeactivateQuizzes(ctx, q.ID); err != nil {
			return Quiz{}, errors.Wrap(err, "deactivating quiz")
		}
		q.IsActive = false
	}
	return q, nil
}

func (svc *service) ListForClassroom(ctx context.Context, classroomID string) ([]Quiz, error) {
	quizzes, err := svc.repo.QueryQuizzes(ctx, QueryFilter{ClassroomIDs: []string{classroomID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}

	now := svc.now()
	overdue := make([]string, 0)
	for i, q := range quizzes {
		if q.IsActive && q.IsPastDue(now) {
			overdue = append(overdue, q.ID)
			quizzes[i].IsActive = false
		}
	}
	if len(overdue) > 0 {
		if err = svc.repo.DeactivateQuizzes(ctx, overdue...); err != nil {
			return nil, errors.Wrap(err, "deactivating overdue quizzes")
		}
	}
	return quizzes, nil
}

func (svc *service) Update(ctx context.Context, q Quiz, uq UpdateQuiz) (Quiz, error) {
	q.Title = uq.Title
	if uq.Description != nil {
		q.Description = *uq.Description
	}
	q.DueDate = uq.DueDate.UTC()
	if uq.DurationMinutes != nil {
		q.DurationMinutes = *uq.DurationMinutes
	}
	if uq.IsActive != nil {
		q.IsActive = *uq.IsActive
	}
	q.UpdatedAt = svc.now()
	return svc.repo.UpdateQuiz(ctx, q)
}

func (svc *service) SetActive(ctx context.Context, q Quiz, active bool) (Quiz, error) {
	q.IsActive = active
	q.UpdatedAt = svc.now()
	return svc.repo.UpdateQuiz(ctx, q)
}

func (svc *service) Delete(ctx context.Context, q Quiz) error {
	return svc.repo.DeleteQuiz(ctx, q.ID)
}

func (svc *service) QuestionBank(ctx context.Context, teacher user.User) ([]Question, error) {
	if !teacher.IsTeacher() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryQuestions(ctx, QuestionFilter{CreatorID: teacher.ID})
}

func (svc *service) Questions(ctx context.Context, quizID string) ([]Question, error) {
	questions, err := svc.repo.QueryQuestions(ctx, QuestionFilter{QuizID: quizID})
	if err != nil {
		return nil, errors.Wrap(err, "querying quiz questions")
	}
	return questions, nil
}

func (svc *service) GetOwnedQuestion(ctx context.Context, usr user.User, id string) (Question, error) {
	question, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if question.CreatorID != usr.ID {
		return Question{}, ErrQuestionNotFound
	}
	return question, nil
}

func (svc *service) CreateQuestion(ctx context.Context, q Quiz, creator user.User, qd QuestionData) (Question, error) {
	now := svc.now()
	question, err := svc.repo.CreateQuestion(ctx, Question{
		CreatorID:      creator.ID,
		Text:           qd.Text,
		Type:           qd.Type,
		Options:        qd.Options,
		CorrectAnswers: qd.CorrectAnswers,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Question{}, errors.Wrap(err, "creating question")
	}
	if err = svc.repo.AddQuizQuestions(ctx, q.ID, question.ID); err != nil {
		return Question{}, errors.Wrap(err, "adding quiz question")
	}
	return question, nil
}

func (svc *service) UpdateQuestion(ctx context.Context, question Question, qd QuestionData) (Question, error) {
	question.Text = qd.Text
	question.Type = qd.Type
	question.Options = qd.Options
	question.CorrectAnswers = qd.CorrectAnswers
	question.UpdatedAt = svc.now()
	return svc.repo.UpdateQuestion(ctx, question)
}

func (svc *service) DeleteQuestion(ctx context.Context, question Question) error {
	return svc.repo.DeleteQuestion(ctx, question.ID)
}

// AddExistingQuestions links questions from the teacher's bank to the quiz. Questions of other teachers are ignored.
func (svc *service) AddExistingQuestions(ctx context.Context, q Quiz, teacher user.User, questionIDs []string) ([]Question, error) {
	questions, err := svc.repo.QueryQuestions(ctx, QuestionFilter{CreatorID: teacher.ID, IDs: questionIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	if len(questions) == 0 {
		return []Question{}, nil
	}

	ids := make([]string, 0, len(questions))
	for _, question := range questions {
		ids = append(ids, question.ID)
	}
	if err = svc.repo.AddQuizQuestions(ctx, q.ID, ids...); err != nil {
		return nil, errors.Wrap(err, "adding quiz questions")
	}
	return questions, nil
}

func (svc *service) RemoveQuestion(ctx context.Context, q Quiz, questionID string) error {
	return svc.repo.RemoveQuizQuestion(ctx, q.ID, questionID)
}

// checkEligibility returns the quiz if the student may still take it.
func (svc *service) checkEligibility(ctx context.Context, student user.User, quizID string) (Quiz, error) {
	if !student.IsStudent() {
		return Quiz{}, core.ErrPermissionDenied
	}
	q, err := svc.Get(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}

	enrolled, err := svc.classrooms.IsEnrolled(ctx, q.ClassroomID, student.ID)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Quiz{}, ErrNotEnrolled
	}
	if !q.IsActive {
		return Quiz{}, ErrQuizInactive
	}
	if q.IsPastDue(svc.now()) {
		if _, err = svc.deactivateIfOverdue(ctx, q); err != nil {
			return Quiz{}, err
		}
		return Quiz{}, ErrQuizPastDue
	}

	if _, err = svc.repo.GetSubmission(ctx, q.ID, student.ID); err == nil {
		return Quiz{}, ErrAlreadySubmitted
	} else if !core.IsNotFound(err) {
		return Quiz{}, errors.Wrap(err, "finding submission")
	}
	return q, nil
}

func (svc *service) Start(ctx context.Context, student user.User, quizID string) (Quiz, error) {
	q, err := svc.checkEligibility(ctx, student, quizID)
	if err != nil {
		return Quiz{}, err
	}
	questions, err := svc.Questions(ctx, q.ID)
	if err != nil {
		return Quiz{}, err
	}
	if len(questions) == 0 {
		return Quiz{}, ErrNoQuestions
	}

	q.Questions = make([]Question, 0, len(questions))
	for _, question := range questions {
		q.Questions = append(q.Questions, question.WithoutAnswers())
	}
	q.QuestionCount = len(q.Questions)
	return q, nil
}

func (svc *service) Submit(ctx context.Context, student user.User, quizID string, sq SubmitQuiz) (SubmissionResult, error) {
	q, err := svc.checkEligibility(ctx, student, quizID)
	if err != nil {
		return SubmissionResult{}, err
	}
	questions, err := svc.Questions(ctx, q.ID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if len(questions) == 0 {
		return SubmissionResult{}, ErrNoQuestions
	}

	score, answers, feedback := GradeAll(questions, sq.Answers)
	sub, err := svc.repo.CreateSubmission(ctx, Submission{
		QuizID:         q.ID,
		StudentID:      student.ID,
		Score:          score,
		TotalQuestions: len(questions),
		SubmittedAt:    svc.now(),
		Answers:        answers,
	})
	if err != nil {
		if err == ErrAlreadySubmitted {
			return SubmissionResult{}, err
		}
		return SubmissionResult{}, errors.Wrap(err, "creating submission")
	}

	svc.events.Publish(ctx, core.EventQuizSubmitted, submittedEvent{
		QuizID:      q.ID,
		ClassroomID: q.ClassroomID,
		StudentID:   student.ID,
		Score:       sub.Score,
		Total:       sub.TotalQuestions,
	})
	return SubmissionResult{Submission: sub, Percentage: sub.Percentage(), Feedback: feedback}, nil
}

// GetResult returns the student's graded submission.
func (svc *service) GetResult(ctx context.Context, student user.User, quizID string) (SubmissionResult, error) {
	sub, err := svc.repo.GetSubmission(ctx, quizID, student.ID)
	if err != nil {
		return SubmissionResult{}, err
	}
	questions, err := svc.Questions(ctx, quizID)
	if err != nil {
		return SubmissionResult{}, err
	}

	given := make(map[string]Answer, len(sub.Answers))
	for _, ans := range sub.Answers {
		given[ans.QuestionID] = ans
	}
	feedback := make([]Feedback, 0, len(questions))
	for _, question := range questions {
		ans := given[question.ID]
		feedback = append(feedback, Feedback{
			QuestionID:     question.ID,
			Question:       question.Text,
			Type:           question.Type,
			UserAnswer:     ans.Answer,
			CorrectAnswers: question.CorrectAnswers,
			IsCorrect:      ans.IsCorrect,
		})
	}
	return SubmissionResult{Submission: sub, Percentage: sub.Percentage(), Feedback: feedback}, nil
}

func (svc *service) Submissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, filter)
}

type submittedEvent struct {
	QuizID      string `json:"quiz_id"`
	ClassroomID string `json:"classroom_id"`
	StudentID   string `json:"student_id"`
	Score       int    `json:"score"`
	Total       int    `json:"total"`
}
