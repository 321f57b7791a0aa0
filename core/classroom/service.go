package classroom

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/user"
)

const maxCodeAttempts = 10

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("classroom not found")
	ErrCodeExists      = errors.New("a classroom with this code already exists")
	ErrInvalidCode     = errors.New("invalid class code")
	ErrStudentNotFound = errors.New("no student found with this email or username")
	ErrNotAStudent     = errors.New("this user is not a student")
	ErrAlreadyEnrolled = core.NewRequestError("student is already enrolled in this classroom")
	ErrNotEnrolled     = core.NewRequestError("student is not enrolled in this classroom")
)

var orderingFields = map[string]string{
	"name":       "name",
	"subject":    "subject",
	"section":    "section",
	"created_at": "created_at",
}

type (
	Repository interface {
		CodeExists(ctx context.Context, code string) (bool, error)
		// CreateClassroom returns ErrCodeExists when the join code is taken.
		CreateClassroom(ctx context.Context, c Classroom) (Classroom, error)
		GetClassroom(ctx context.Context, filter GetFilter) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, c Classroom) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string) error
		QueryStudents(ctx context.Context, classroomID string) ([]user.User, error)
		IsEnrolled(ctx context.Context, classroomID, studentID string) (bool, error)
		// Enroll returns ErrAlreadyEnrolled if the student is already in the classroom.
		Enroll(ctx context.Context, classroomID, studentID string, joinedAt time.Time) error
		// Unenroll returns ErrNotEnrolled if the student is not in the classroom.
		Unenroll(ctx context.Context, classroomID, studentID string) error
	}

	Service interface {
		Reader

		Create(ctx context.Context, teacher user.User, nc NewClassroom) (Classroom, error)
		// GetForUser returns the classroom with its roster if `usr` owns it or is enrolled in it.
		GetForUser(ctx context.Context, usr user.User, id string) (Classroom, error)
		// GetOwned returns the classroom if `usr` is the teacher owning it.
		GetOwned(ctx context.Context, usr user.User, id string) (Classroom, error)
		ListForUser(ctx context.Context, usr user.User, ordering []core.DBOrdering) ([]Classroom, error)
		Update(ctx context.Context, c Classroom, uc UpdateClassroom) (Classroom, error)
		Delete(ctx context.Context, c Classroom) error
		Join(ctx context.Context, student user.User, code string) (Classroom, error)
		AddStudent(ctx context.Context, c Classroom, emailOrUsername string) (user.User, error)
		AddStudents(ctx context.Context, c Classroom, studentIDs []string) (EnrollmentResult, error)
		RemoveStudent(ctx context.Context, c Classroom, studentID string) error
		Unenroll(ctx context.Context, student user.User, id string) error
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		events  core.EventPublisher
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, events core.EventPublisher) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		events:  events,
	}
}

func (svc *service) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := GenerateCode(CodeLength)
		if err != nil {
			return "", errors.Wrap(err, "generating class code")
		}
		exists, err := svc.repo.CodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "checking class code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique class code")
}

func (svc *service) Create(ctx context.Context, teacher user.User, nc NewClassroom) (Classroom, error) {
	if !teacher.IsTeacher() {
		return Classroom{}, core.ErrPermissionDenied
	}

	for i := 0; i < maxCodeAttempts; i++ {
		code, err := svc.uniqueCode(ctx)
		if err != nil {
			return Classroom{}, err
		}
		c, err := svc.repo.CreateClassroom(ctx, Classroom{
			TeacherID: teacher.ID,
			Name:      nc.Name,
			Section:   nc.Section,
			Subject:   nc.Subject,
			Room:      nc.Room,
			Code:      code,
			CreatedAt: time.Now().UTC(),
		})
		if err == ErrCodeExists { // lost a race on the code
			continue
		}
		if err != nil {
			return Classroom{}, errors.Wrap(err, "creating classroom")
		}
		return c, nil
	}
	return Classroom{}, errors.New("could not generate a unique class code")
}

func (svc *service) Get(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, GetFilter{ID: id})
}

func (svc *service) withRoster(ctx context.Context, c Classroom) (Classroom, error) {
	teacher, err := svc.usrSvc.GetByID(ctx, c.TeacherID)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "finding classroom teacher")
	}
	c.Teacher = &teacher

	if c.Students, err = svc.repo.QueryStudents(ctx, c.ID); err != nil {
		return Classroom{}, errors.Wrap(err, "querying classroom students")
	}
	c.StudentCount = len(c.Students)
	return c, nil
}

func (svc *service) GetForUser(ctx context.Context, usr user.User, id string) (Classroom, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Classroom{}, err
	}

	switch {
	case c.IsOwnedBy(usr), usr.IsAdmin():
	case usr.IsStudent():
		enrolled, err := svc.repo.IsEnrolled(ctx, c.ID, usr.ID)
		if err != nil {
			return Classroom{}, errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return Classroom{}, ErrNotFound
		}
	default:
		return Classroom{}, ErrNotFound
	}
	return svc.withRoster(ctx, c)
}

func (svc *service) GetOwned(ctx context.Context, usr user.User, id string) (Classroom, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	if !(c.IsOwnedBy(usr) || usr.IsAdmin()) {
		return Classroom{}, core.ErrPermissionDenied
	}
	return c, nil
}

func (svc *service) ListForUser(ctx context.Context, usr user.User, ordering []core.DBOrdering) ([]Classroom, error) {
	var filter QueryFilter
	switch {
	case usr.IsTeacher():
		filter.TeacherID = usr.ID
	case usr.IsStudent():
		filter.StudentID = usr.ID
	case usr.IsAdmin():
	default:
		return []Classroom{}, nil
	}

	ordering = core.FilterOrderings(ordering, orderingFields)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryClassrooms(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, c Classroom, uc UpdateClassroom) (Classroom, error) {
	c.Name = uc.Name
	c.Section = uc.Section
	c.Subject = uc.Subject
	c.Room = uc.Room
	return svc.repo.UpdateClassroom(ctx, c)
}

func (svc *service) Delete(ctx context.Context, c Classroom) error {
	return svc.repo.DeleteClassroom(ctx, c.ID)
}

func (svc *service) Join(ctx context.Context, student user.User, code string) (Classroom, error) {
	if !student.IsStudent() {
		return Classroom{}, core.ErrPermissionDenied
	}

	code = core.CleanString(code)
	c, err := svc.repo.GetClassroom(ctx, GetFilter{Code: code})
	if err != nil {
		if core.IsNotFound(err) {
			return Classroom{}, core.NewValidationError(
				ErrInvalidCode,
				core.FieldError{Field: "class_code", Error: ErrInvalidCode.Error()},
			)
		}
		return Classroom{}, errors.Wrap(err, "finding classroom by code")
	}

	if err = svc.enroll(ctx, c, student, false); err != nil {
		return c, err
	}
	c.StudentCount++
	return c, nil
}

// enroll adds the student to the classroom and broadcasts it. ErrAlreadyEnrolled is returned unwrapped.
func (svc *service) enroll(ctx context.Context, c Classroom, student user.User, notify bool) error {
	if err := svc.repo.Enroll(ctx, c.ID, student.ID, time.Now().UTC()); err != nil {
		if err == ErrAlreadyEnrolled {
			return err
		}
		return errors.Wrap(err, "enrolling student")
	}

	svc.events.Publish(ctx, core.EventClassroomJoined, joinedEvent{ClassroomID: c.ID, StudentID: student.ID})
	if notify {
		svc.sendEnrollmentMail(ctx, c, student)
	}
	return nil
}

func (svc *service) AddStudent(ctx context.Context, c Classroom, emailOrUsername string) (user.User, error) {
	student, err := svc.usrSvc.GetByUsernameOrEmail(ctx, emailOrUsername)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.NewValidationError(
				ErrStudentNotFound,
				core.FieldError{Field: "email_or_username", Error: ErrStudentNotFound.Error()},
			)
		}
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() {
		return user.User{}, core.NewValidationError(
			ErrNotAStudent,
			core.FieldError{Field: "email_or_username", Error: ErrNotAStudent.Error()},
		)
	}

	if err = svc.enroll(ctx, c, student, true); err != nil {
		return student, err
	}
	return student, nil
}

// AddStudents enrolls every student in `studentIDs`. Non students are skipped, unknown IDs fail with user.ErrNotFound.
func (svc *service) AddStudents(ctx context.Context, c Classroom, studentIDs []string) (EnrollmentResult, error) {
	res := EnrollmentResult{Added: []user.User{}, AlreadyEnrolled: []user.User{}}
	seen := make(map[string]bool, len(studentIDs))

	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		student, err := svc.usrSvc.GetByID(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return EnrollmentResult{}, err
			}
			return EnrollmentResult{}, errors.Wrap(err, "finding student")
		}
		if !student.IsStudent() {
			continue
		}

		switch err = svc.enroll(ctx, c, student, true); err {
		case nil:
			res.Added = append(res.Added, student)
		case ErrAlreadyEnrolled:
			res.AlreadyEnrolled = append(res.AlreadyEnrolled, student)
		default:
			return EnrollmentResult{}, err
		}
	}
	return res, nil
}

func (svc *service) RemoveStudent(ctx context.Context, c Classroom, studentID string) error {
	return svc.repo.Unenroll(ctx, c.ID, studentID)
}

func (svc *service) Unenroll(ctx context.Context, student user.User, id string) error {
	if !student.IsStudent() {
		return core.ErrPermissionDenied
	}
	c, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return svc.repo.Unenroll(ctx, c.ID, student.ID)
}

func (svc *service) IsEnrolled(ctx context.Context, classroomID, studentID string) (bool, error) {
	return svc.repo.IsEnrolled(ctx, classroomID, studentID)
}

func (svc *service) Students(ctx context.Context, classroomID string) ([]user.User, error) {
	return svc.repo.QueryStudents(ctx, classroomID)
}

func (svc *service) sendEnrollmentMail(ctx context.Context, c Classroom, student user.User) {
	teacherName := "Your teacher"
	if teacher, err := svc.usrSvc.GetByID(ctx, c.TeacherID); err == nil {
		teacherName = teacher.FullName()
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.FullName(), Address: student.Email}},
		Subject:      "You have been added to " + c.Name,
		TemplateName: "classroom_enrollment",
		TemplateData: map[string]string{
			"Name":        student.FullName(),
			"TeacherName": teacherName,
			"ClassName":   c.Name,
			"Subject":     c.Subject,
			"Section":     c.Section,
			"ClassroomID": c.ID,
		},
	})
}

type joinedEvent struct {
	ClassroomID string `json:"classroom_id"`
	StudentID   string `json:"student_id"`
}
