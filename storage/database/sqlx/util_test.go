package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/tests"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		search string
		want   string
	}{
		{"jane", "%jane%"},
		{"john_d", `%john\_d%`},
		{"100%", `%100\%%`},
		{`a\b`, `%a\\b%`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, containsPattern(tc.search), tc.search)
	}
}

func TestQuestionRow_roundTrip(t *testing.T) {
	validate := testutil.Validator()

	qd := quiz.QuestionData{
		Text:           "Pick the poem",
		Type:           quiz.TypeMultipleChoice,
		Options:        []string{"Roses are red\nViolets are blue", "Other"},
		CorrectAnswers: []string{"Roses are red\nViolets are blue"},
	}
	assert.Error(t, qd.Validate(validate))

	qd = quiz.QuestionData{
		Text:           "Pick the poem",
		Type:           quiz.TypeMultipleChoice,
		Options:        []string{" Roses are red ", "Other", ""},
		CorrectAnswers: []string{"Roses are red"},
	}
	if !assert.NoError(t, qd.Validate(validate)) {
		return
	}
	q := quiz.Question{Text: qd.Text, Type: qd.Type, Options: qd.Options, CorrectAnswers: qd.CorrectAnswers}

	back := toQuestionRow(q).toQuestion()
	assert.Equal(t, q.Options, back.Options)
	assert.Equal(t, q.CorrectAnswers, back.CorrectAnswers)
	assert.True(t, quiz.Grade(back, "Roses are red"))
	assert.False(t, quiz.Grade(back, "Other"))

	empty := toQuestionRow(quiz.Question{Type: quiz.TypeIdentification, CorrectAnswers: []string{"Paris"}}).toQuestion()
	assert.Equal(t, []string{}, empty.Options)
}
