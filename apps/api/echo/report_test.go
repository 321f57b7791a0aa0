package echoapi

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/report"
	"github.com/trezcool/quizroom/core/user"
	"github.com/trezcool/quizroom/tests"
)

// submit records a graded submission of `student` answering the fixture quiz.
func (f quizFixture) submit(t *testing.T, app *testApp, student user.User, mcq, tfq, identq bool) {
	testutil.CreateSubmission(t, app.quizRepo, f.quiz, student,
		quiz.Answer{QuestionID: f.mcq.ID, Answer: "x", IsCorrect: mcq},
		quiz.Answer{QuestionID: f.tfq.ID, Answer: "x", IsCorrect: tfq},
		quiz.Answer{QuestionID: f.identq.ID, Answer: "x", IsCorrect: identq},
	)
}

func Test_reportApi_quizAnalytics(t *testing.T) {
	app := setup(t)
	f := newQuizFixture(t, app)
	zed := testutil.CreateUser(t, app.usrRepo, "Zed", "zed", "zed@test.cd", "", user.RoleStudent, true)
	testutil.Enroll(t, app.classroomRepo, f.classroom, zed)
	f.submit(t, app, f.student, true, true, false)
	f.submit(t, app, zed, true, false, false)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "student",
			method:   http.MethodGet,
			path:     quizPath(f.quiz, "/analytics"),
			token:    getToken(t, app, f.student),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "other teacher",
			method:   http.MethodGet,
			path:     quizPath(f.quiz, "/analytics"),
			token:    getToken(t, app, f.other),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown quiz",
			method:   http.MethodGet,
			path:     "/v1/quizzes/unknown/analytics",
			token:    getToken(t, app, f.teacher),
			wantCode: http.StatusNotFound,
		},
	})

	rec := app.do(http.MethodGet, quizPath(f.quiz, "/analytics"), getToken(t, app, f.teacher))
	if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		return
	}
	var res report.QuizAnalytics
	unmarshall(t, rec.Body, &res)

	assert.Equal(t, 2, res.Participants)
	assert.Equal(t, 1.5, res.Average)
	assert.Equal(t, 2, res.Highest)
	assert.Equal(t, 1, res.Lowest)
	assert.Equal(t, 3, res.Quiz.QuestionCount)
	assert.Equal(t, "Teacher Test", res.Classroom.TeacherName)
	if assert.Len(t, res.Students, 2) {
		assert.Equal(t, "Student Test", res.Students[0].StudentName)
		assert.Equal(t, 66.67, res.Students[0].Percentage)
		assert.Equal(t, "Zed Test", res.Students[1].StudentName)
	}
	if assert.Len(t, res.Questions, 3) {
		assert.Equal(t, 100.0, res.Questions[0].SuccessRate)
		assert.Equal(t, 1, res.Questions[1].Correct)
		assert.Equal(t, 1, res.Questions[1].Incorrect)
		assert.Equal(t, 50.0, res.Questions[1].SuccessRate)
		assert.Equal(t, 0.0, res.Questions[2].SuccessRate)
	}
}

func Test_reportApi_quizReport(t *testing.T) {
	app := setup(t)
	f := newQuizFixture(t, app)
	token := getToken(t, app, f.teacher)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, httpErr{Error: report.ErrNoResponses.Error()}),
	}, app.do(http.MethodGet, quizPath(f.quiz, "/report"), token))

	f.submit(t, app, f.student, true, false, true)
	rec := app.do(http.MethodGet, quizPath(f.quiz, "/report"), token)
	if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename="))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	}
}

func Test_reportApi_emailQuizReport(t *testing.T) {
	app := setup(t)
	f := newQuizFixture(t, app)
	path := quizPath(f.quiz, "/report/email")

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, path, getToken(t, app, f.other)).Code)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, httpErr{Error: report.ErrNoResponses.Error()}),
	}, app.do(http.MethodPost, path, getToken(t, app, f.teacher)))

	f.submit(t, app, f.student, true, false, true)
	app.mailSvc.Reset()

	rec := app.do(http.MethodPost, path, getToken(t, app, f.teacher))
	if !assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String()) {
		return
	}
	sent := app.mailSvc.SentMessages()
	if !assert.Len(t, sent, 1) {
		return
	}
	msg := sent[0]
	assert.Equal(t, f.teacher.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, f.quiz.Title)
	if assert.Len(t, msg.Attachments, 1) {
		at := msg.Attachments[0]
		assert.Equal(t, "application/pdf", at.ContentType)
		assert.True(t, strings.HasSuffix(at.Filename, "_teacher_report.pdf"))
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		if assert.NoError(t, err) {
			assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
		}
	}
}

func Test_reportApi_gradebook(t *testing.T) {
	app := setup(t)
	f := newQuizFixture(t, app)
	testutil.CreateQuiz(t, app.quizRepo, f.classroom, "Later", time.Now().Add(72*time.Hour), true)
	f.submit(t, app, f.student, true, true, false)

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/v1/classrooms/"+f.classroom.ID+"/gradebook", getToken(t, app, f.other)).Code)

	rec := app.do(http.MethodGet, "/v1/classrooms/"+f.classroom.ID+"/gradebook", getToken(t, app, f.teacher))
	if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		return
	}
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "_gradebook.xlsx")

	book, err := excelize.OpenReader(rec.Body)
	if !assert.NoError(t, err) {
		return
	}
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetName(0))
	if assert.NoError(t, err) && assert.Len(t, rows, 2) {
		assert.Equal(t, []string{"Student", "Username", "Email", "Basics", "Later", "Average %"}, rows[0])
		assert.Equal(t, []string{"Student Test", "student", "student@test.cd", "2", "", "66.67"}, rows[1])
	}
}

func Test_reportApi_dashboard(t *testing.T) {
	app := setup(t)
	f := newQuizFixture(t, app)
	f.submit(t, app, f.student, true, false, false)

	t.Run("teacher", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard", getToken(t, app, f.teacher))
		if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			var res report.Dashboard
			unmarshall(t, rec.Body, &res)
			assert.Len(t, res.Classrooms, 1)
			assert.Nil(t, res.Selected)
		}

		rec = app.do(http.MethodGet, "/v1/dashboard?classroom_id="+f.classroom.ID, getToken(t, app, f.teacher))
		if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			var res report.Dashboard
			unmarshall(t, rec.Body, &res)
			if assert.NotNil(t, res.Selected) {
				assert.Equal(t, f.classroom.ID, res.Selected.ID)
			}
			assert.Len(t, res.Quizzes, 1)
			assert.Equal(t, map[string]map[string]int{f.student.ID: {f.quiz.ID: 1}}, res.StudentScores)
			assert.Empty(t, res.Grades)
		}
	})

	t.Run("student", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard?classroom_id="+f.classroom.ID, getToken(t, app, f.student))
		if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			var res report.Dashboard
			unmarshall(t, rec.Body, &res)
			assert.Empty(t, res.StudentScores)
			if grade, ok := res.Grades[f.quiz.ID]; assert.True(t, ok) {
				assert.Equal(t, 1, grade.Score)
				assert.Equal(t, 3, grade.Total)
				assert.Equal(t, 33.33, grade.Percentage)
			}
		}
	})

	t.Run("not enrolled", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard?classroom_id="+f.classroom.ID, getToken(t, app, f.outsider))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
