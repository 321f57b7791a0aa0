package quiz

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizroom/core"
)

// Question types
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeIdentification = "identification"

	answerTrue  = "True"
	answerFalse = "False"

	// newQuestionPrefix marks questions staged on the client that do not exist yet.
	newQuestionPrefix = "temp-"
)

var QuestionTypes = []string{TypeMultipleChoice, TypeTrueFalse, TypeIdentification}

type Quiz struct {
	ID              string     `json:"id"`
	ClassroomID     string     `json:"classroom_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DueDate         time.Time  `json:"due_date"`         // UTC
	DurationMinutes int        `json:"duration_minutes"` // 0 means untimed
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
	QuestionCount   int        `json:"question_count"`
	Questions       []Question `json:"questions,omitempty"`
}

func (q Quiz) IsPastDue(now time.Time) bool {
	return now.After(q.DueDate)
}

type Question struct {
	ID             string    `json:"id"`
	CreatorID      string    `json:"creator_id"`
	Text           string    `json:"text"`
	Type           string    `json:"type"`
	Options        []string  `json:"options"`
	CorrectAnswers []string  `json:"correct_answers,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// WithoutAnswers returns a copy of the question safe to show to students.
func (q Question) WithoutAnswers() Question {
	q.CorrectAnswers = nil
	return q
}

// Submission is the recorded outcome of one student's attempt at one quiz.
type Submission struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quiz_id"`
	StudentID      string    `json:"student_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"` // UTC
	Answers        []Answer  `json:"answers,omitempty"`
}

// Percentage is the score over the total, rounded to 2 decimal places.
func (s Submission) Percentage() float64 {
	return Percentage(s.Score, s.TotalQuestions)
}

type Answer struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	QuestionID   string `json:"question_id"`
	Answer       string `json:"answer"`
	IsCorrect    bool   `json:"is_correct"`
}

// Feedback tells a student how one of their answers was graded.
type Feedback struct {
	QuestionID     string   `json:"question_id"`
	Question       string   `json:"question"`
	Type           string   `json:"type"`
	UserAnswer     string   `json:"user_answer"`
	CorrectAnswers []string `json:"correct_answers"`
	IsCorrect      bool     `json:"is_correct"`
}

type SubmissionResult struct {
	Submission Submission `json:"submission"`
	Percentage float64    `json:"percentage"`
	Feedback   []Feedback `json:"feedback"`
}

// Round2 rounds to 2 decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(score) / float64(total) * 100)
}

// QuestionData holds a question as written by a teacher.
type QuestionData struct {
	ID             string   `json:"id,omitempty"`
	Text           string   `json:"text" validate:"required,notblank"`
	Type           string   `json:"type" validate:"required,questiontype"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correct_answers"`
}

func (qd QuestionData) isStagedNew() bool {
	return qd.ID == "" || strings.HasPrefix(qd.ID, newQuestionPrefix)
}

// Validate cleans the question and checks the rules of its type:
// multiple choice needs options and answers among them, true/false needs True or False,
// identification needs at least one accepted answer.
func (qd *QuestionData) Validate(validate *validator.Validate) error {
	qd.Text = core.CleanString(qd.Text)
	qd.Type = core.CleanString(qd.Type, true /* lower */)
	qd.Options = cleanList(qd.Options)
	qd.CorrectAnswers = cleanList(qd.CorrectAnswers)

	if err := validate.Struct(qd); err != nil {
		return err
	}

	fieldErr := func(field, msg string) error {
		return core.NewValidationError(fmt.Errorf("%s: %s", field, msg), core.FieldError{Field: field, Error: msg})
	}

	// lists are stored one item per line
	if hasLineBreak(qd.Options) {
		return fieldErr("options", "options cannot contain line breaks")
	}
	if hasLineBreak(qd.CorrectAnswers) {
		return fieldErr("correct_answers", "answers cannot contain line breaks")
	}

	switch qd.Type {
	case TypeMultipleChoice:
		if len(qd.Options) < 2 {
			return fieldErr("options", "multiple choice questions need at least 2 options")
		}
		if len(qd.CorrectAnswers) == 0 {
			return fieldErr("correct_answers", "select the correct answer")
		}
		for _, ans := range qd.CorrectAnswers {
			if !core.ContainsString(qd.Options, ans) {
				return fieldErr("correct_answers", fmt.Sprintf("%q is not one of the options", ans))
			}
		}
	case TypeTrueFalse:
		if len(qd.CorrectAnswers) != 1 {
			return fieldErr("correct_answers", "answer must be True or False")
		}
		switch strings.ToLower(qd.CorrectAnswers[0]) {
		case "true":
			qd.CorrectAnswers = []string{answerTrue}
		case "false":
			qd.CorrectAnswers = []string{answerFalse}
		default:
			return fieldErr("correct_answers", "answer must be True or False")
		}
		qd.Options = []string{answerTrue, answerFalse}
	case TypeIdentification:
		if len(qd.CorrectAnswers) == 0 {
			return fieldErr("correct_answers", "identification questions need at least 1 accepted answer")
		}
		qd.Options = []string{}
	}
	return nil
}

func hasLineBreak(items []string) bool {
	for _, item := range items {
		if strings.ContainsAny(item, "\r\n") {
			return true
		}
	}
	return false
}

// cleanList trims the items and drops the blank ones.
func cleanList(items []string) []string {
	res := make([]string, 0, len(items))
	for _, item := range items {
		if item = core.CleanString(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}

type NewQuiz struct {
	Title           string         `json:"title" validate:"required,notblank,max=200"`
	Description     string         `json:"description" validate:"max=2000"`
	DueDate         time.Time      `json:"due_date" validate:"required"`
	DurationMinutes int            `json:"duration_minutes" validate:"min=0,max=600"`
	IsActive        *bool          `json:"is_active"`
	Questions       []QuestionData `json:"questions"`

	// filled by Validate
	staged   []QuestionData
	warnings []string
}

// Validate checks the quiz fields. Staged questions failing validation are dropped and reported as warnings.
func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	if err := validate.Struct(nq); err != nil {
		return err
	}

	nq.staged = make([]QuestionData, 0, len(nq.Questions))
	nq.warnings = make([]string, 0)
	for i, qd := range nq.Questions {
		qd := qd
		if !qd.isStagedNew() {
			nq.staged = append(nq.staged, qd)
			continue
		}
		if err := qd.Validate(validate); err != nil {
			nq.warnings = append(nq.warnings, fmt.Sprintf("question %d was skipped: %s", i+1, describeErr(err)))
			continue
		}
		nq.staged = append(nq.staged, qd)
	}
	return nil
}

// QuizCreated is a new quiz along with the problems met while attaching its questions.
type QuizCreated struct {
	Quiz     Quiz     `json:"quiz"`
	Warnings []string `json:"warnings"`
}

// UpdateQuiz holds the editable fields. Zero values keep the current value.
type UpdateQuiz struct {
	Title           string    `json:"title" validate:"required,notblank,max=200"`
	Description     *string   `json:"description" validate:"omitempty,max=2000"`
	DueDate         time.Time `json:"due_date" validate:"required"`
	DurationMinutes *int      `json:"duration_minutes" validate:"omitempty,min=0,max=600"`
	IsActive        *bool     `json:"is_active"`
}

func (uq *UpdateQuiz) Validate(orig Quiz, validate *validator.Validate) error {
	if title := core.CleanString(uq.Title); title != "" {
		uq.Title = title
	} else {
		uq.Title = orig.Title
	}
	if uq.Description != nil {
		desc := core.CleanString(*uq.Description)
		uq.Description = &desc
	}
	if uq.DueDate.IsZero() {
		uq.DueDate = orig.DueDate
	}
	return validate.Struct(uq)
}

type AddQuestions struct {
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,required"`
}

func (aq *AddQuestions) Validate(validate *validator.Validate) error {
	return validate.Struct(aq)
}

type SubmitQuiz struct {
	// Answers maps question IDs to the student's answer. Unanswered questions count as wrong.
	Answers map[string]string `json:"answers"`
}

type QueryFilter struct {
	ClassroomIDs []string
}

type QuestionFilter struct {
	CreatorID string
	QuizID    string
	IDs       []string
}

type SubmissionFilter struct {
	QuizIDs     []string
	StudentID   string
	WithAnswers bool
}

func describeErr(err error) string {
	if verr, ok := err.(validator.ValidationErrors); ok {
		msgs := make([]string, 0, len(verr))
		for _, fe := range verr {
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
		return strings.Join(msgs, ", ")
	}
	return err.Error()
}
