package quiz_test

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/tests"
)

func TestQuestionData_Validate(t *testing.T) {
	validate := testutil.Validator()

	tests := []struct {
		name      string
		data      quiz.QuestionData
		wantField string // empty when valid
		want      quiz.QuestionData
	}{
		{
			name:      "bad type",
			data:      quiz.QuestionData{Text: "Q", Type: "essay"},
			wantField: "type",
		},
		{
			name:      "blank text",
			data:      quiz.QuestionData{Text: "   ", Type: quiz.TypeIdentification, CorrectAnswers: []string{"a"}},
			wantField: "text",
		},
		{
			name:      "mcq single option",
			data:      quiz.QuestionData{Text: "Q", Type: quiz.TypeMultipleChoice, Options: []string{"a", " "}, CorrectAnswers: []string{"a"}},
			wantField: "options",
		},
		{
			name:      "mcq no answer",
			data:      quiz.QuestionData{Text: "Q", Type: quiz.TypeMultipleChoice, Options: []string{"a", "b"}},
			wantField: "correct_answers",
		},
		{
			name:      "mcq answer not an option",
			data:      quiz.QuestionData{Text: "Q", Type: quiz.TypeMultipleChoice, Options: []string{"a", "b"}, CorrectAnswers: []string{"c"}},
			wantField: "correct_answers",
		},
		{
			name:      "tf bad answer",
			data:      quiz.QuestionData{Text: "Q", Type: quiz.TypeTrueFalse, CorrectAnswers: []string{"yes"}},
			wantField: "correct_answers",
		},
		{
			name:      "tf two answers",
			data:      quiz.QuestionData{Text: "Q", Type: quiz.TypeTrueFalse, CorrectAnswers: []string{"True", "False"}},
			wantField: "correct_answers",
		},
		{
			name:      "identification no answer",
			data:      quiz.QuestionData{Text: "Q", Type: quiz.TypeIdentification, CorrectAnswers: []string{" "}},
			wantField: "correct_answers",
		},
		{
			name: "option with a line break",
			data: quiz.QuestionData{
				Text:           "Q",
				Type:           quiz.TypeMultipleChoice,
				Options:        []string{"Roses are red\nViolets are blue", "Other"},
				CorrectAnswers: []string{"Other"},
			},
			wantField: "options",
		},
		{
			name: "answer with a line break",
			data: quiz.QuestionData{
				Text:           "Q",
				Type:           quiz.TypeIdentification,
				CorrectAnswers: []string{"Paris\r\nLyon"},
			},
			wantField: "correct_answers",
		},
		{
			name: "mcq",
			data: quiz.QuestionData{Text: " 2+2? ", Type: "Multiple_Choice", Options: []string{" 3 ", "4", ""}, CorrectAnswers: []string{"4"}},
			want: quiz.QuestionData{Text: "2+2?", Type: quiz.TypeMultipleChoice, Options: []string{"3", "4"}, CorrectAnswers: []string{"4"}},
		},
		{
			name: "tf normalized",
			data: quiz.QuestionData{Text: "Sky is blue", Type: quiz.TypeTrueFalse, Options: []string{"x"}, CorrectAnswers: []string{"true"}},
			want: quiz.QuestionData{Text: "Sky is blue", Type: quiz.TypeTrueFalse, Options: []string{"True", "False"}, CorrectAnswers: []string{"True"}},
		},
		{
			name: "identification drops options",
			data: quiz.QuestionData{Text: "Capital", Type: quiz.TypeIdentification, Options: []string{"a"}, CorrectAnswers: []string{"Paris", ""}},
			want: quiz.QuestionData{Text: "Capital", Type: quiz.TypeIdentification, Options: []string{}, CorrectAnswers: []string{"Paris"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			qd := tc.data
			err := qd.Validate(validate)
			if tc.wantField == "" {
				if assert.NoError(t, err) {
					assert.Equal(t, tc.want, qd)
				}
				return
			}
			switch verr := err.(type) {
			case validator.ValidationErrors:
				assert.Equal(t, tc.wantField, verr[0].Field())
			case *core.ValidationError:
				assert.Equal(t, tc.wantField, verr.Fields[0].Field)
			default:
				t.Errorf("Validate() error = %v, want a validation error on %s", err, tc.wantField)
			}
		})
	}
}

func TestNewQuiz_Validate(t *testing.T) {
	validate := testutil.Validator()

	nq := quiz.NewQuiz{Title: "  ", DueDate: time.Now()}
	assert.Error(t, nq.Validate(validate))

	nq = quiz.NewQuiz{Title: "Basics", DurationMinutes: -1, DueDate: time.Now()}
	assert.Error(t, nq.Validate(validate))

	nq = quiz.NewQuiz{
		Title:   " Basics ",
		DueDate: time.Now().Add(time.Hour),
		Questions: []quiz.QuestionData{
			{ID: "temp-1", Text: "Capital", Type: quiz.TypeIdentification, CorrectAnswers: []string{"Paris"}},
			{ID: "temp-2", Text: "Broken", Type: quiz.TypeTrueFalse, CorrectAnswers: []string{"maybe"}},
			{ID: "existing-id"},
		},
	}
	if assert.NoError(t, nq.Validate(validate)) {
		assert.Equal(t, "Basics", nq.Title)
	}
}
