package report

import (
	"bytes"
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/user"
)

var ErrNoResponses = core.NewRequestError("no responses found for this quiz")

type (
	Service interface {
		// QuizAnalytics computes the scores of a quiz owned by `usr`.
		QuizAnalytics(ctx context.Context, usr user.User, quizID string) (QuizAnalytics, error)
		// Dashboard lists the classrooms of `usr` and, when `classroomID` is set, its quizzes and grades.
		Dashboard(ctx context.Context, usr user.User, classroomID string) (Dashboard, error)
		QuizReportPDF(ctx context.Context, usr user.User, quizID string) (File, error)
		// EmailQuizReport sends the PDF quiz report to `usr` as an attachment.
		EmailQuizReport(ctx context.Context, usr user.User, quizID string) error
		GradebookXLSX(ctx context.Context, usr user.User, classroomID string) (File, error)
	}

	service struct {
		classrooms classroom.Service
		quizzes    quiz.Service
		users      user.Service
		mailSvc    core.EmailService
		nowFunc    func() time.Time // mockable
	}
)

var _ Service = (*service)(nil)

func NewService(
	classrooms classroom.Service,
	quizzes quiz.Service,
	users user.Service,
	mailSvc core.EmailService,
) Service {
	return &service{
		classrooms: classrooms,
		quizzes:    quizzes,
		users:      users,
		mailSvc:    mailSvc,
		nowFunc:    time.Now,
	}
}

func (svc *service) classroomInfo(ctx context.Context, c classroom.Classroom) (ClassroomInfo, error) {
	info := ClassroomInfo{ID: c.ID, Name: c.Name, Subject: c.Subject, Section: c.Section}
	teacher, err := svc.users.GetByID(ctx, c.TeacherID)
	if err != nil {
		return ClassroomInfo{}, errors.Wrap(err, "finding classroom teacher")
	}
	info.TeacherName = teacher.FullName()
	return info, nil
}

func (svc *service) QuizAnalytics(ctx context.Context, usr user.User, quizID string) (QuizAnalytics, error) {
	q, c, err := svc.quizzes.GetOwned(ctx, usr, quizID)
	if err != nil {
		return QuizAnalytics{}, err
	}
	res := QuizAnalytics{Quiz: q}
	if res.Classroom, err = svc.classroomInfo(ctx, c); err != nil {
		return QuizAnalytics{}, err
	}

	subs, err := svc.quizzes.Submissions(ctx, quiz.SubmissionFilter{QuizIDs: []string{q.ID}, WithAnswers: true})
	if err != nil {
		return QuizAnalytics{}, errors.Wrap(err, "querying submissions")
	}
	if res.Students, err = svc.studentScores(ctx, subs); err != nil {
		return QuizAnalytics{}, err
	}

	res.Participants = len(res.Students)
	if res.Participants > 0 {
		sum := 0
		res.Highest, res.Lowest = res.Students[0].Score, res.Students[0].Score
		for _, s := range res.Students {
			sum += s.Score
			if s.Score > res.Highest {
				res.Highest = s.Score
			}
			if s.Score < res.Lowest {
				res.Lowest = s.Score
			}
		}
		res.Average = quiz.Round2(float64(sum) / float64(res.Participants))
	}

	questions, err := svc.quizzes.Questions(ctx, q.ID)
	if err != nil {
		return QuizAnalytics{}, err
	}
	res.Quiz.QuestionCount = len(questions)
	res.Questions = questionStats(questions, subs)
	return res, nil
}

// studentScores turns submissions into report rows sorted by student name.
func (svc *service) studentScores(ctx context.Context, subs []quiz.Submission) ([]StudentScore, error) {
	rows := make([]StudentScore, 0, len(subs))
	for _, sub := range subs {
		row := StudentScore{
			StudentID:   sub.StudentID,
			Score:       sub.Score,
			Total:       sub.TotalQuestions,
			Percentage:  sub.Percentage(),
			SubmittedAt: sub.SubmittedAt,
		}
		student, err := svc.users.GetByID(ctx, sub.StudentID)
		switch {
		case err == nil:
			row.StudentName = student.FullName()
			row.Username = student.Username
		case core.IsNotFound(err):
			row.StudentName = "Unknown student"
		default:
			return nil, errors.Wrap(err, "finding student")
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StudentName < rows[j].StudentName })
	return rows, nil
}

func questionStats(questions []quiz.Question, subs []quiz.Submission) []QuestionStats {
	stats := make([]QuestionStats, 0, len(questions))
	index := make(map[string]int, len(questions))
	for i, question := range questions {
		index[question.ID] = i
		stats = append(stats, QuestionStats{QuestionID: question.ID, Text: question.Text, Type: question.Type})
	}

	for _, sub := range subs {
		for _, ans := range sub.Answers {
			i, ok := index[ans.QuestionID]
			if !ok {
				continue
			}
			if ans.IsCorrect {
				stats[i].Correct++
			} else {
				stats[i].Incorrect++
			}
		}
	}
	for i := range stats {
		stats[i].SuccessRate = quiz.Percentage(stats[i].Correct, stats[i].Correct+stats[i].Incorrect)
	}
	return stats
}

func (svc *service) Dashboard(ctx context.Context, usr user.User, classroomID string) (Dashboard, error) {
	var (
		res Dashboard
		err error
	)
	if res.Classrooms, err = svc.classrooms.ListForUser(ctx, usr, nil); err != nil {
		return Dashboard{}, errors.Wrap(err, "listing classrooms")
	}
	if classroomID == "" {
		return res, nil
	}

	c, err := svc.classrooms.GetForUser(ctx, usr, classroomID)
	if err != nil {
		return Dashboard{}, err
	}
	res.Selected = &c
	if res.Quizzes, err = svc.quizzes.ListForClassroom(ctx, c.ID); err != nil {
		return Dashboard{}, err
	}
	quizIDs := make([]string, 0, len(res.Quizzes))
	for _, q := range res.Quizzes {
		quizIDs = append(quizIDs, q.ID)
	}
	if len(quizIDs) == 0 {
		return res, nil
	}

	switch {
	case c.IsOwnedBy(usr), usr.IsAdmin():
		subs, err := svc.quizzes.Submissions(ctx, quiz.SubmissionFilter{QuizIDs: quizIDs})
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "querying submissions")
		}
		res.StudentScores = make(map[string]map[string]int)
		for _, sub := range subs {
			if res.StudentScores[sub.StudentID] == nil {
				res.StudentScores[sub.StudentID] = make(map[string]int)
			}
			res.StudentScores[sub.StudentID][sub.QuizID] = sub.Score
		}
	case usr.IsStudent():
		subs, err := svc.quizzes.Submissions(ctx, quiz.SubmissionFilter{QuizIDs: quizIDs, StudentID: usr.ID})
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "querying submissions")
		}
		res.Grades = make(map[string]Grade, len(subs))
		for _, sub := range subs {
			res.Grades[sub.QuizID] = Grade{
				Score:       sub.Score,
				Total:       sub.TotalQuestions,
				Percentage:  sub.Percentage(),
				SubmittedAt: sub.SubmittedAt,
			}
		}
	}
	return res, nil
}

func (svc *service) QuizReportPDF(ctx context.Context, usr user.User, quizID string) (File, error) {
	f, _, err := svc.quizReport(ctx, usr, quizID)
	return f, err
}

func (svc *service) quizReport(ctx context.Context, usr user.User, quizID string) (File, QuizAnalytics, error) {
	analytics, err := svc.QuizAnalytics(ctx, usr, quizID)
	if err != nil {
		return File{}, QuizAnalytics{}, err
	}
	if analytics.Participants == 0 {
		return File{}, QuizAnalytics{}, ErrNoResponses
	}

	content, err := renderQuizReport(analytics, svc.nowFunc())
	if err != nil {
		return File{}, QuizAnalytics{}, errors.Wrap(err, "rendering quiz report")
	}
	f := File{
		Name:        quizReportFilename(analytics),
		ContentType: "application/pdf",
		Content:     content,
	}
	return f, analytics, nil
}

func (svc *service) EmailQuizReport(ctx context.Context, usr user.User, quizID string) error {
	f, analytics, err := svc.quizReport(ctx, usr, quizID)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Quiz report: " + analytics.Quiz.Title,
		TemplateName: "quiz_report",
		TemplateData: map[string]string{
			"Name":      usr.FullName(),
			"QuizTitle": analytics.Quiz.Title,
			"ClassName": analytics.Classroom.Name,
		},
	}
	if err = msg.Attach(bytes.NewReader(f.Content), f.Name, f.ContentType); err != nil {
		return errors.Wrap(err, "attaching quiz report")
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *service) GradebookXLSX(ctx context.Context, usr user.User, classroomID string) (File, error) {
	c, err := svc.classrooms.GetOwned(ctx, usr, classroomID)
	if err != nil {
		return File{}, err
	}
	students, err := svc.classrooms.Students(ctx, c.ID)
	if err != nil {
		return File{}, errors.Wrap(err, "querying classroom students")
	}
	quizzes, err := svc.quizzes.ListForClassroom(ctx, c.ID)
	if err != nil {
		return File{}, err
	}

	scores := make(map[string]map[string]quiz.Submission)
	if len(quizzes) > 0 {
		ids := make([]string, 0, len(quizzes))
		for _, q := range quizzes {
			ids = append(ids, q.ID)
		}
		subs, err := svc.quizzes.Submissions(ctx, quiz.SubmissionFilter{QuizIDs: ids})
		if err != nil {
			return File{}, errors.Wrap(err, "querying submissions")
		}
		for _, sub := range subs {
			if scores[sub.StudentID] == nil {
				scores[sub.StudentID] = make(map[string]quiz.Submission)
			}
			scores[sub.StudentID][sub.QuizID] = sub
		}
	}

	content, err := renderGradebook(c, students, quizzes, scores)
	if err != nil {
		return File{}, errors.Wrap(err, "rendering gradebook")
	}
	return File{
		Name:        safeFilename(c.Subject+"_"+c.Name) + "_gradebook.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
	}, nil
}
