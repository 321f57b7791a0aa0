package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/user"
)

func TestQuestionStats(t *testing.T) {
	questions := []quiz.Question{
		{ID: "q1", Text: "2+2?", Type: quiz.TypeMultipleChoice},
		{ID: "q2", Text: "Capital", Type: quiz.TypeIdentification},
		{ID: "q3", Text: "Unanswered", Type: quiz.TypeTrueFalse},
	}
	subs := []quiz.Submission{
		{Answers: []quiz.Answer{
			{QuestionID: "q1", IsCorrect: true},
			{QuestionID: "q2", IsCorrect: true},
			{QuestionID: "removed", IsCorrect: true},
		}},
		{Answers: []quiz.Answer{
			{QuestionID: "q1", IsCorrect: true},
			{QuestionID: "q2", IsCorrect: false},
		}},
		{Answers: []quiz.Answer{
			{QuestionID: "q1", IsCorrect: false},
			{QuestionID: "q2", IsCorrect: false},
		}},
	}

	stats := questionStats(questions, subs)
	assert.Equal(t, []QuestionStats{
		{QuestionID: "q1", Text: "2+2?", Type: quiz.TypeMultipleChoice, Correct: 2, Incorrect: 1, SuccessRate: 66.67},
		{QuestionID: "q2", Text: "Capital", Type: quiz.TypeIdentification, Correct: 1, Incorrect: 2, SuccessRate: 33.33},
		{QuestionID: "q3", Text: "Unanswered", Type: quiz.TypeTrueFalse},
	}, stats)
}

func TestRenderQuizReport(t *testing.T) {
	a := QuizAnalytics{
		Quiz:      quiz.Quiz{Title: "Basics"},
		Classroom: ClassroomInfo{Name: "Algebra", Subject: "Math", TeacherName: "Ana Ngoy"},
		Students: []StudentScore{
			{StudentName: "Jane Test", Score: 2, Total: 3, Percentage: 66.67},
			{StudentName: "Jérôme Test", Score: 1, Total: 3, Percentage: 33.33},
		},
		Participants: 2,
		Average:      1.5,
		Highest:      2,
		Lowest:       1,
	}

	content, err := renderQuizReport(a, time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC))
	if assert.NoError(t, err) {
		assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
	}
	assert.Equal(t, "Math_Basics_teacher_report.pdf", quizReportFilename(a))
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Math_Quiz 1", "Math_Quiz 1"},
		{`Say "hi"`, "Say _hi_"},
		{"a/b\\c", "a_b_c"},
		{"line\nbreak", "linebreak"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, safeFilename(tc.name))
	}
}

func TestRenderGradebook(t *testing.T) {
	c := classroom.Classroom{Name: "Algebra", Subject: "Math"}
	students := []user.User{
		{ID: "s1", FirstName: "Jane", LastName: "Doe", Username: "jane", Email: "jane@test.cd"},
		{ID: "s2", FirstName: "John", LastName: "Doe", Username: "john", Email: "john@test.cd"},
	}
	quizzes := []quiz.Quiz{{ID: "q1", Title: "Basics"}, {ID: "q2", Title: "Later"}}
	scores := map[string]map[string]quiz.Submission{
		"s1": {
			"q1": {Score: 2, TotalQuestions: 4},
			"q2": {Score: 1, TotalQuestions: 1},
		},
	}

	content, err := renderGradebook(c, students, quizzes, scores)
	if !assert.NoError(t, err) {
		return
	}
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if !assert.NoError(t, err) {
		return
	}
	defer f.Close()

	rows, err := f.GetRows(gradebookSheet)
	if assert.NoError(t, err) && assert.Len(t, rows, 3) {
		assert.Equal(t, []string{"Student", "Username", "Email", "Basics", "Later", "Average %"}, rows[0])
		assert.Equal(t, []string{"Jane Doe", "jane", "jane@test.cd", "2", "1", "75"}, rows[1])
		assert.Equal(t, []string{"John Doe", "john", "john@test.cd"}, rows[2])
	}
}

func TestParseRoster(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]interface{}{
		{"Email or username"},
		{" Jane@Test.cd "},
		{nil},
		{"john", "ignored"},
	} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := row
		assert.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	_ = f.Close()
	if !assert.NoError(t, err) {
		return
	}

	roster, err := ParseRoster(buf)
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"jane@test.cd", "john"}, roster)
	}

	_, err = ParseRoster(strings.NewReader("not a spreadsheet"))
	assert.True(t, core.IsRequestError(err))
}
