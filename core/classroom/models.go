package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/user"
)

const (
	CodeLength    = 7
	minCodeLength = 5
)

type Classroom struct {
	ID           string      `json:"id"`
	TeacherID    string      `json:"teacher_id"`
	Name         string      `json:"name"`
	Section      string      `json:"section"`
	Subject      string      `json:"subject"`
	Room         string      `json:"room"`
	Code         string      `json:"code"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
	StudentCount int         `json:"student_count"`
	Teacher      *user.User  `json:"teacher,omitempty"`
	Students     []user.User `json:"students,omitempty"`
}

func (c Classroom) IsOwnedBy(usr user.User) bool {
	return usr.IsTeacher() && c.TeacherID == usr.ID
}

type NewClassroom struct {
	Name    string `json:"name" validate:"required,max=100"`
	Section string `json:"section" validate:"required,max=100"`
	Subject string `json:"subject" validate:"required,max=100"`
	Room    string `json:"room" validate:"required,max=100"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Room = core.CleanString(nc.Room)
	return validate.Struct(nc)
}

// UpdateClassroom holds the editable fields. Blank fields keep their current value.
type UpdateClassroom struct {
	Name    string `json:"name" validate:"required,max=100"`
	Section string `json:"section" validate:"required,max=100"`
	Subject string `json:"subject" validate:"required,max=100"`
	Room    string `json:"room" validate:"required,max=100"`
}

func (uc *UpdateClassroom) Validate(orig Classroom, validate *validator.Validate) error {
	fill := func(val, orig string) string {
		if v := core.CleanString(val); v != "" {
			return v
		}
		return orig
	}
	uc.Name = fill(uc.Name, orig.Name)
	uc.Section = fill(uc.Section, orig.Section)
	uc.Subject = fill(uc.Subject, orig.Subject)
	uc.Room = fill(uc.Room, orig.Room)
	return validate.Struct(uc)
}

type JoinClassroom struct {
	Code string `json:"class_code" validate:"required,min=5,max=7,alphanum"`
}

func (jc *JoinClassroom) Validate(validate *validator.Validate) error {
	jc.Code = core.CleanString(jc.Code)
	return validate.Struct(jc)
}

type AddStudent struct {
	EmailOrUsername string `json:"email_or_username" validate:"required"`
}

func (as *AddStudent) Validate(validate *validator.Validate) error {
	as.EmailOrUsername = core.CleanString(as.EmailOrUsername, true /* lower */)
	return validate.Struct(as)
}

type AddStudents struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

func (as *AddStudents) Validate(validate *validator.Validate) error {
	return validate.Struct(as)
}

// EnrollmentResult reports the outcome of a bulk enrollment.
type EnrollmentResult struct {
	Added           []user.User `json:"added"`
	AlreadyEnrolled []user.User `json:"already_enrolled"`
}

type GetFilter struct {
	ID   string
	Code string
}

type QueryFilter struct {
	TeacherID string
	StudentID string
}

// Reader is the read access other domains need on classrooms.
type Reader interface {
	Get(ctx context.Context, id string) (Classroom, error)
	IsEnrolled(ctx context.Context, classroomID, studentID string) (bool, error)
	Students(ctx context.Context, classroomID string) ([]user.User, error)
}
