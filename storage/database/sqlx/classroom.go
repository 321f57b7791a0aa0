package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/user"
)

const classroomColumns = `c.id, c.teacher_id, c.name, c.section, c.subject, c.room, c.code, c.created_at,
	(SELECT COUNT(*) FROM classroom_students cs WHERE cs.classroom_id = c.id) AS student_count`

type classroomRow struct {
	ID           string    `db:"id"`
	TeacherID    string    `db:"teacher_id"`
	Name         string    `db:"name"`
	Section      string    `db:"section"`
	Subject      string    `db:"subject"`
	Room         string    `db:"room"`
	Code         string    `db:"code"`
	CreatedAt    time.Time `db:"created_at"`
	StudentCount int       `db:"student_count"`
}

func (r classroomRow) toClassroom() classroom.Classroom {
	return classroom.Classroom{
		ID:           r.ID,
		TeacherID:    r.TeacherID,
		Name:         r.Name,
		Section:      r.Section,
		Subject:      r.Subject,
		Room:         r.Room,
		Code:         r.Code,
		CreatedAt:    r.CreatedAt.UTC(),
		StudentCount: r.StudentCount,
	}
}

type classroomRepository struct {
	db core.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db core.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM classrooms WHERE code = $1)`, code)
	if err != nil {
		return false, errors.Wrap(err, "checking class code")
	}
	return exists, nil
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, c classroom.Classroom) (classroom.Classroom, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = c.CreatedAt.UTC()
	q := `INSERT INTO classrooms (id, teacher_id, name, section, subject, room, code, created_at)
		VALUES (:id, :teacher_id, :name, :section, :subject, :room, :code, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, classroomRow{
		ID:        c.ID,
		TeacherID: c.TeacherID,
		Name:      c.Name,
		Section:   c.Section,
		Subject:   c.Subject,
		Room:      c.Room,
		Code:      c.Code,
		CreatedAt: c.CreatedAt,
	}); err != nil {
		if _, ok := uniqueViolated(err); ok {
			return classroom.Classroom{}, classroom.ErrCodeExists
		}
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return c, nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, filter classroom.GetFilter) (classroom.Classroom, error) {
	var (
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return classroom.Classroom{}, classroom.ErrNotFound
		}
		cond, arg = "c.id = $1", filter.ID
	case filter.Code != "":
		cond, arg = "c.code = $1", filter.Code
	default:
		return classroom.Classroom{}, classroom.ErrNotFound
	}

	var row classroomRow
	q := `SELECT ` + classroomColumns + ` FROM classrooms c WHERE ` + cond
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		return classroom.Classroom{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding classroom")
	}
	return row.toClassroom(), nil
}

func (repo *classroomRepository) QueryClassrooms(
	ctx context.Context,
	filter classroom.QueryFilter,
	ordering []core.DBOrdering,
) ([]classroom.Classroom, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.TeacherID != "" {
		conds = append(conds, "c.teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conds = append(conds, "c.id IN (SELECT classroom_id FROM classroom_students WHERE student_id = ?)")
		args = append(args, filter.StudentID)
	}
	for i := range ordering {
		ordering[i].Field = "c." + ordering[i].Field
	}

	var rows []classroomRow
	q := `SELECT ` + classroomColumns + ` FROM classrooms c` + where(conds) + orderBy(ordering)
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	res := make([]classroom.Classroom, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toClassroom())
	}
	return res, nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, c classroom.Classroom) (classroom.Classroom, error) {
	res, err := repo.db.ExecContext(
		ctx,
		`UPDATE classrooms SET name = $1, section = $2, subject = $3, room = $4 WHERE id = $5`,
		c.Name, c.Section, c.Subject, c.Room, c.ID,
	)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return c, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	if !validUUID(id) {
		return classroom.ErrNotFound
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return nil
}

func (repo *classroomRepository) QueryStudents(ctx context.Context, classroomID string) ([]user.User, error) {
	if !validUUID(classroomID) {
		return []user.User{}, nil
	}
	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM users
		WHERE id IN (SELECT student_id FROM classroom_students WHERE classroom_id = $1)
		ORDER BY first_name, last_name, username`
	if err := repo.db.SelectContext(ctx, &rows, q, classroomID); err != nil {
		return nil, errors.Wrap(err, "querying classroom students")
	}
	return toUsers(rows), nil
}

func (repo *classroomRepository) IsEnrolled(ctx context.Context, classroomID, studentID string) (bool, error) {
	if !(validUUID(classroomID) && validUUID(studentID)) {
		return false, nil
	}
	var enrolled bool
	err := repo.db.GetContext(
		ctx,
		&enrolled,
		`SELECT EXISTS (SELECT 1 FROM classroom_students WHERE classroom_id = $1 AND student_id = $2)`,
		classroomID, studentID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return enrolled, nil
}

func (repo *classroomRepository) Enroll(ctx context.Context, classroomID, studentID string, joinedAt time.Time) error {
	_, err := repo.db.ExecContext(
		ctx,
		`INSERT INTO classroom_students (classroom_id, student_id, joined_at) VALUES ($1, $2, $3)`,
		classroomID, studentID, joinedAt.UTC(),
	)
	if err != nil {
		if _, ok := uniqueViolated(err); ok {
			return classroom.ErrAlreadyEnrolled
		}
		return errors.Wrap(err, "enrolling student")
	}
	return nil
}

func (repo *classroomRepository) Unenroll(ctx context.Context, classroomID, studentID string) error {
	if !(validUUID(classroomID) && validUUID(studentID)) {
		return classroom.ErrNotEnrolled
	}
	res, err := repo.db.ExecContext(
		ctx,
		`DELETE FROM classroom_students WHERE classroom_id = $1 AND student_id = $2`,
		classroomID, studentID,
	)
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.ErrNotEnrolled
	}
	return nil
}
