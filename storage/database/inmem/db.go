// Package inmemdb implements the repositories over maps. It backs the tests and the API when no database is configured.
package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/user"
)

// DB holds every table behind a single lock so cascades stay consistent.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	classrooms  map[string]*classroom.Classroom
	enrollments map[string]map[string]time.Time // classroom ID -> student ID -> joined at
	quizzes     map[string]*quiz.Quiz
	questions   map[string]*quiz.Question
	quizQs      map[string][]string // quiz ID -> ordered question IDs
	submissions map[string]*quiz.Submission
}

func Open() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		classrooms:  make(map[string]*classroom.Classroom),
		enrollments: make(map[string]map[string]time.Time),
		quizzes:     make(map[string]*quiz.Quiz),
		questions:   make(map[string]*quiz.Question),
		quizQs:      make(map[string][]string),
		submissions: make(map[string]*quiz.Submission),
	}
}

// Cascades. Callers hold the write lock.

func (db *DB) deleteUser(id string) {
	delete(db.users, id)
	for cid, c := range db.classrooms {
		if c.TeacherID == id {
			db.deleteClassroom(cid)
		}
	}
	for _, students := range db.enrollments {
		delete(students, id)
	}
	for qid, q := range db.questions {
		if q.CreatorID == id {
			db.deleteQuestion(qid)
		}
	}
	for sid, s := range db.submissions {
		if s.StudentID == id {
			delete(db.submissions, sid)
		}
	}
}

func (db *DB) deleteClassroom(id string) {
	delete(db.classrooms, id)
	delete(db.enrollments, id)
	for qid, q := range db.quizzes {
		if q.ClassroomID == id {
			db.deleteQuiz(qid)
		}
	}
}

func (db *DB) deleteQuiz(id string) {
	delete(db.quizzes, id)
	delete(db.quizQs, id)
	for sid, s := range db.submissions {
		if s.QuizID == id {
			delete(db.submissions, sid)
		}
	}
}

func (db *DB) deleteQuestion(id string) {
	delete(db.questions, id)
	for qid, ids := range db.quizQs {
		db.quizQs[qid] = removeString(ids, id)
	}
	for _, s := range db.submissions {
		answers := s.Answers[:0]
		for _, ans := range s.Answers {
			if ans.QuestionID != id {
				answers = append(answers, ans)
			}
		}
		s.Answers = answers
	}
}

func removeString(list []string, s string) []string {
	res := make([]string, 0, len(list))
	for _, item := range list {
		if item != s {
			res = append(res, item)
		}
	}
	return res
}

func containsAny(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
