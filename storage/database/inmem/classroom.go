package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/user"
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db}
}

// get returns a copy of the classroom with its student count. Callers hold the lock.
func (repo *classroomRepository) get(c *classroom.Classroom) classroom.Classroom {
	res := *c
	res.StudentCount = len(repo.db.enrollments[c.ID])
	return res
}

func (repo *classroomRepository) CodeExists(_ context.Context, code string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.classrooms {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (repo *classroomRepository) CreateClassroom(_ context.Context, c classroom.Classroom) (classroom.Classroom, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, cls := range repo.db.classrooms {
		if cls.Code == c.Code {
			return classroom.Classroom{}, classroom.ErrCodeExists
		}
	}
	c.ID = uuid.New().String()
	c.StudentCount = 0
	c.Teacher, c.Students = nil, nil
	repo.db.classrooms[c.ID] = &c
	return c, nil
}

func (repo *classroomRepository) GetClassroom(_ context.Context, filter classroom.GetFilter) (classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if c, ok := repo.db.classrooms[filter.ID]; ok {
			return repo.get(c), nil
		}
	case filter.Code != "":
		for _, c := range repo.db.classrooms {
			if c.Code == filter.Code {
				return repo.get(c), nil
			}
		}
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryClassrooms(
	_ context.Context,
	filter classroom.QueryFilter,
	ordering []core.DBOrdering,
) ([]classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]classroom.Classroom, 0)
	for _, c := range repo.db.classrooms {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" {
			if _, ok := repo.db.enrollments[c.ID][filter.StudentID]; !ok {
				continue
			}
		}
		res = append(res, repo.get(c))
	}
	sortClassrooms(res, ordering)
	return res, nil
}

func sortClassrooms(list []classroom.Classroom, ordering []core.DBOrdering) {
	field := func(c classroom.Classroom, name string) string {
		switch name {
		case "name":
			return strings.ToLower(c.Name)
		case "subject":
			return strings.ToLower(c.Subject)
		case "section":
			return strings.ToLower(c.Section)
		default:
			return c.CreatedAt.Format(time.RFC3339Nano)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := field(list[i], ord.Field), field(list[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
}

func (repo *classroomRepository) UpdateClassroom(_ context.Context, c classroom.Classroom) (classroom.Classroom, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.classrooms[c.ID]
	if !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	orig.Name = c.Name
	orig.Section = c.Section
	orig.Subject = c.Subject
	orig.Room = c.Room
	return repo.get(orig), nil
}

func (repo *classroomRepository) DeleteClassroom(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.deleteClassroom(id)
	return nil
}

func (repo *classroomRepository) QueryStudents(_ context.Context, classroomID string) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]user.User, 0, len(repo.db.enrollments[classroomID]))
	for id := range repo.db.enrollments[classroomID] {
		if usr, ok := repo.db.users[id]; ok {
			students = append(students, *usr)
		}
	}
	sortUsers(students)
	return students, nil
}

func (repo *classroomRepository) IsEnrolled(_ context.Context, classroomID, studentID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.enrollments[classroomID][studentID]
	return ok, nil
}

func (repo *classroomRepository) Enroll(_ context.Context, classroomID, studentID string, joinedAt time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classrooms[classroomID]; !ok {
		return classroom.ErrNotFound
	}
	students, ok := repo.db.enrollments[classroomID]
	if !ok {
		students = make(map[string]time.Time)
		repo.db.enrollments[classroomID] = students
	}
	if _, ok = students[studentID]; ok {
		return classroom.ErrAlreadyEnrolled
	}
	students[studentID] = joinedAt
	return nil
}

func (repo *classroomRepository) Unenroll(_ context.Context, classroomID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.enrollments[classroomID][studentID]; !ok {
		return classroom.ErrNotEnrolled
	}
	delete(repo.db.enrollments[classroomID], studentID)
	return nil
}
