package quiz

import "strings"

// Grade tells whether `answer` is a correct answer to `q`.
// Multiple choice answers must match an option exactly; true/false and identification answers are case insensitive.
// Surrounding whitespace is ignored and blank answers are always wrong.
func Grade(q Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}

	for _, correct := range q.CorrectAnswers {
		correct = strings.TrimSpace(correct)
		switch q.Type {
		case TypeMultipleChoice:
			if answer == correct {
				return true
			}
		default:
			if strings.EqualFold(answer, correct) {
				return true
			}
		}
	}
	return false
}

// GradeAll grades the student answers against every question of a quiz.
func GradeAll(questions []Question, answers map[string]string) (score int, graded []Answer, feedback []Feedback) {
	graded = make([]Answer, 0, len(questions))
	feedback = make([]Feedback, 0, len(questions))
	for _, q := range questions {
		given := strings.TrimSpace(answers[q.ID])
		ok := Grade(q, given)
		if ok {
			score++
		}
		graded = append(graded, Answer{QuestionID: q.ID, Answer: given, IsCorrect: ok})
		feedback = append(feedback, Feedback{
			QuestionID:     q.ID,
			Question:       q.Text,
			Type:           q.Type,
			UserAnswer:     given,
			CorrectAnswers: q.CorrectAnswers,
			IsCorrect:      ok,
		})
	}
	return score, graded, feedback
}
