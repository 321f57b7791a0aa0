package report

import (
	"time"

	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
)

// StudentScore is one row of a quiz report.
type StudentScore struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Username    string    `json:"username"`
	Score       int       `json:"score"`
	Total       int       `json:"total_questions"`
	Percentage  float64   `json:"percentage"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type QuestionStats struct {
	QuestionID  string  `json:"question_id"`
	Text        string  `json:"text"`
	Type        string  `json:"type"`
	Correct     int     `json:"correct_responses"`
	Incorrect   int     `json:"incorrect_responses"`
	SuccessRate float64 `json:"success_rate"`
}

type QuizAnalytics struct {
	Quiz         quiz.Quiz       `json:"quiz"`
	Classroom    ClassroomInfo   `json:"classroom"`
	Students     []StudentScore  `json:"student_scores"`
	Participants int             `json:"total_participants"`
	Average      float64         `json:"average_score"`
	Highest      int             `json:"highest_score"`
	Lowest       int             `json:"lowest_score"`
	Questions    []QuestionStats `json:"questions"`
}

type ClassroomInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Section     string `json:"section"`
	TeacherName string `json:"teacher_name"`
}

// Dashboard is the landing page data of a user.
type Dashboard struct {
	Classrooms []classroom.Classroom `json:"classrooms"`
	Selected   *classroom.Classroom  `json:"selected_classroom,omitempty"`
	Quizzes    []quiz.Quiz           `json:"quizzes,omitempty"`

	// teachers: student ID -> quiz ID -> score
	StudentScores map[string]map[string]int `json:"student_scores,omitempty"`
	// students: quiz ID -> own submission
	Grades map[string]Grade `json:"grades,omitempty"`
}

type Grade struct {
	Score       int       `json:"score"`
	Total       int       `json:"total_questions"`
	Percentage  float64   `json:"percentage"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// File is a generated document ready to be downloaded.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}
