// Package testutil holds the fixtures shared by the service and API tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/user"
)

// StrongPassword satisfies the password policy.
const StrongPassword = "S3cure!Passw0rd"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns a validator with every app validation registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		translator := core.NewTranslator()
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		quiz.InitValidators(validate, translator)
	})
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	firstName, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName: firstName,
		LastName:  "Test",
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClassroom(t *testing.T, repo classroom.Repository, teacher user.User, name, code string) classroom.Classroom {
	c, err := repo.CreateClassroom(context.Background(), classroom.Classroom{
		TeacherID: teacher.ID,
		Name:      name,
		Section:   "A",
		Subject:   name + " Subject",
		Room:      "101",
		Code:      code,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return c
}

func Enroll(t *testing.T, repo classroom.Repository, c classroom.Classroom, students ...user.User) {
	for _, s := range students {
		if err := repo.Enroll(context.Background(), c.ID, s.ID, time.Now().UTC()); err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
	}
}

func CreateQuiz(t *testing.T, repo quiz.Repository, c classroom.Classroom, title string, dueDate time.Time, active bool) quiz.Quiz {
	now := time.Now().UTC()
	q, err := repo.CreateQuiz(context.Background(), quiz.Quiz{
		ClassroomID: c.ID,
		Title:       title,
		DueDate:     dueDate.UTC(),
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}

// CreateQuestion creates a question and links it to the quizzes.
func CreateQuestion(
	t *testing.T,
	repo quiz.Repository,
	creator user.User,
	qType, text string,
	options, answers []string,
	quizzes ...quiz.Quiz,
) quiz.Question {
	now := time.Now().UTC()
	question, err := repo.CreateQuestion(context.Background(), quiz.Question{
		CreatorID:      creator.ID,
		Text:           text,
		Type:           qType,
		Options:        options,
		CorrectAnswers: answers,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	for _, q := range quizzes {
		if err = repo.AddQuizQuestions(context.Background(), q.ID, question.ID); err != nil {
			t.Fatalf("CreateQuestion() failed: %v", err)
		}
	}
	return question
}

func CreateSubmission(t *testing.T, repo quiz.Repository, q quiz.Quiz, student user.User, answers ...quiz.Answer) quiz.Submission {
	score := 0
	for _, ans := range answers {
		if ans.IsCorrect {
			score++
		}
	}
	sub, err := repo.CreateSubmission(context.Background(), quiz.Submission{
		QuizID:         q.ID,
		StudentID:      student.ID,
		Score:          score,
		TotalQuestions: len(answers),
		SubmittedAt:    time.Now().UTC(),
		Answers:        answers,
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}
