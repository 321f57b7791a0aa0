package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/report"
	"github.com/trezcool/quizroom/core/user"
)

const (
	rosterFormField = "file"
	rosterMaxSize   = "2M"
)

type classroomApi struct {
	svc      classroom.Service
	usrSvc   user.Service
	auth     *Authenticator
	validate *validator.Validate
}

func registerClassroomAPI(g *echo.Group, jwt []echo.MiddlewareFunc, deps *Deps, auth *Authenticator) {
	api := classroomApi{
		svc:      deps.ClassroomSvc,
		usrSvc:   deps.UserSvc,
		auth:     auth,
		validate: deps.Validate,
	}
	teacherOnly := auth.roleMiddleware(user.RoleTeacher)
	studentOnly := auth.roleMiddleware(user.RoleStudent)

	cg := g.Group("/classrooms", withMiddleware(jwt, auth.roleMiddleware(user.RoleTeacher, user.RoleStudent))...)
	cg.GET("", api.query)
	cg.POST("", api.create, teacherOnly)
	cg.POST("/join", api.join, studentOnly)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, teacherOnly)
	dg.DELETE("", api.destroy, teacherOnly)
	dg.POST("/leave", api.leave, studentOnly)
	dg.POST("/students", api.addStudent, teacherOnly)
	dg.POST("/students/bulk", api.addStudents, teacherOnly)
	dg.POST("/students/import", api.importRoster, teacherOnly, middleware.BodyLimit(rosterMaxSize))
	dg.DELETE("/students/:studentId", api.removeStudent, teacherOnly)
}

func (api *classroomApi) owned(ctx echo.Context) (classroom.Classroom, user.User, error) {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return classroom.Classroom{}, user.User{}, err
	}
	c, err := api.svc.GetOwned(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return classroom.Classroom{}, user.User{}, err
	}
	return c, usr, nil
}

// Handlers

func (api *classroomApi) query(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classrooms, err := api.svc.ListForUser(ctx.Request().Context(), usr, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	return ctx.JSON(http.StatusOK, classrooms)
}

func (api *classroomApi) create(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewClassroom
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classroomApi) join(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	var data classroom.JoinClassroom
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinClassroom")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Join(ctx.Request().Context(), usr, data.Code)
	switch err {
	case nil:
		return ctx.JSON(http.StatusOK, EnrollmentResponse{Classroom: &c})
	case classroom.ErrAlreadyEnrolled:
		return ctx.JSON(http.StatusOK, EnrollmentResponse{
			Classroom:       &c,
			AlreadyEnrolled: true,
			Warning:         "you are already enrolled in this classroom",
		})
	default:
		return errors.Wrap(err, "joining classroom")
	}
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetForUser(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classroomApi) update(ctx echo.Context) error {
	c, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	var data classroom.UpdateClassroom
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClassroom")
	}
	if err = data.Validate(c, api.validate); err != nil {
		return err
	}

	if c, err = api.svc.Update(ctx.Request().Context(), c, data); err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	c, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), c); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) leave(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Unenroll(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) addStudent(ctx echo.Context) error {
	c, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	var data classroom.AddStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.svc.AddStudent(ctx.Request().Context(), c, data.EmailOrUsername)
	switch err {
	case nil:
		return ctx.JSON(http.StatusCreated, EnrollmentResponse{Student: &student})
	case classroom.ErrAlreadyEnrolled:
		return ctx.JSON(http.StatusOK, EnrollmentResponse{
			Student:         &student,
			AlreadyEnrolled: true,
			Warning:         student.FullName() + " is already enrolled in this classroom",
		})
	default:
		return err
	}
}

func (api *classroomApi) addStudents(ctx echo.Context) error {
	c, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	var data classroom.AddStudents
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddStudents")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.AddStudents(ctx.Request().Context(), c, data.StudentIDs)
	if err != nil {
		return errors.Wrap(err, "adding students")
	}
	return ctx.JSON(http.StatusOK, res)
}

// importRoster enrolls the students listed (by email or username) in the first column of an uploaded XLSX sheet.
func (api *classroomApi) importRoster(ctx echo.Context) error {
	c, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile(rosterFormField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: rosterFormField, Error: "upload an .xlsx roster"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer file.Close()

	entries, err := report.ParseRoster(file)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: rosterFormField, Error: "could not read the roster"})
	}

	res := RosterImportResult{Skipped: []string{}}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		student, err := api.usrSvc.GetByUsernameOrEmail(ctx.Request().Context(), entry)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding student")
		}
		if err != nil || !student.IsStudent() {
			res.Skipped = append(res.Skipped, entry)
			continue
		}
		ids = append(ids, student.ID)
	}

	if res.EnrollmentResult, err = api.svc.AddStudents(ctx.Request().Context(), c, ids); err != nil {
		return errors.Wrap(err, "adding students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classroomApi) removeStudent(ctx echo.Context) error {
	c, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveStudent(ctx.Request().Context(), c, ctx.Param("studentId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	EnrollmentResponse struct {
		Classroom       *classroom.Classroom `json:"classroom,omitempty"`
		Student         *user.User           `json:"student,omitempty"`
		AlreadyEnrolled bool                 `json:"already_enrolled"`
		Warning         string               `json:"warning,omitempty"`
	}

	RosterImportResult struct {
		classroom.EnrollmentResult
		Skipped []string `json:"skipped"`
	}
)
