package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/user"
)

type quizApi struct {
	svc          quiz.Service
	classroomSvc classroom.Service
	auth         *Authenticator
	validate     *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt []echo.MiddlewareFunc, deps *Deps, auth *Authenticator) {
	api := quizApi{
		svc:          deps.QuizSvc,
		classroomSvc: deps.ClassroomSvc,
		auth:         auth,
		validate:     deps.Validate,
	}
	anyRole := auth.roleMiddleware(user.RoleTeacher, user.RoleStudent)
	teacherOnly := auth.roleMiddleware(user.RoleTeacher)
	studentOnly := auth.roleMiddleware(user.RoleStudent)

	cg := g.Group("/classrooms/:id/quizzes", withMiddleware(jwt, anyRole)...)
	cg.GET("", api.query)
	cg.POST("", api.create, teacherOnly)

	qg := g.Group("/quizzes/:id", withMiddleware(jwt, anyRole)...)
	qg.GET("", api.retrieve)
	qg.PUT("", api.update, teacherOnly)
	qg.DELETE("", api.destroy, teacherOnly)
	qg.POST("/activate", api.activate, teacherOnly)
	qg.POST("/deactivate", api.deactivate, teacherOnly)
	qg.GET("/questions", api.queryQuestions)
	qg.POST("/questions", api.createQuestion, teacherOnly)
	qg.POST("/questions/existing", api.addExistingQuestions, teacherOnly)
	qg.DELETE("/questions/:questionId", api.removeQuestion, teacherOnly)
	qg.POST("/start", api.start, studentOnly)
	qg.POST("/submit", api.submit, studentOnly)
	qg.GET("/result", api.result, studentOnly)

	bg := g.Group("/questions", withMiddleware(jwt, teacherOnly)...)
	bg.GET("", api.questionBank)
	bg.PUT("/:id", api.updateQuestion)
	bg.DELETE("/:id", api.destroyQuestion)
}

func (api *quizApi) owned(ctx echo.Context) (quiz.Quiz, user.User, error) {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return quiz.Quiz{}, user.User{}, err
	}
	q, _, err := api.svc.GetOwned(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return quiz.Quiz{}, user.User{}, err
	}
	return q, usr, nil
}

// Quizzes

func (api *quizApi) query(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	// visibility follows the classroom
	c, err := api.classroomSvc.GetForUser(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}

	quizzes, err := api.svc.ListForClassroom(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.CreateQuiz(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	q, err := api.svc.GetForUser(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) update(ctx echo.Context) error {
	q, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	var data quiz.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(q, api.validate); err != nil {
		return err
	}

	if q, err = api.svc.Update(ctx.Request().Context(), q, data); err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) setActive(ctx echo.Context, active bool) error {
	q, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	if q, err = api.svc.SetActive(ctx.Request().Context(), q, active); err != nil {
		return errors.Wrap(err, "setting quiz status")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) activate(ctx echo.Context) error   { return api.setActive(ctx, true) }
func (api *quizApi) deactivate(ctx echo.Context) error { return api.setActive(ctx, false) }

func (api *quizApi) destroy(ctx echo.Context) error {
	q, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), q); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

// queryQuestions lists the quiz questions. Students do not get the correct answers.
func (api *quizApi) queryQuestions(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	q, err := api.svc.GetForUser(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if !usr.IsStudent() {
		return ctx.JSON(http.StatusOK, q.Questions)
	}

	questions, err := api.svc.Questions(ctx.Request().Context(), q.ID)
	if err != nil {
		return err
	}
	for i := range questions {
		questions[i] = questions[i].WithoutAnswers()
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) createQuestion(ctx echo.Context) error {
	q, usr, err := api.owned(ctx)
	if err != nil {
		return err
	}
	var data quiz.QuestionData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuestionData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	question, err := api.svc.CreateQuestion(ctx.Request().Context(), q, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, question)
}

func (api *quizApi) addExistingQuestions(ctx echo.Context) error {
	q, usr, err := api.owned(ctx)
	if err != nil {
		return err
	}
	var data quiz.AddQuestions
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddQuestions")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	questions, err := api.svc.AddExistingQuestions(ctx.Request().Context(), q, usr, data.QuestionIDs)
	if err != nil {
		return errors.Wrap(err, "adding questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) removeQuestion(ctx echo.Context) error {
	q, _, err := api.owned(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveQuestion(ctx.Request().Context(), q, ctx.Param("questionId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) questionBank(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	questions, err := api.svc.QuestionBank(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying question bank")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) updateQuestion(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	question, err := api.svc.GetOwnedQuestion(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data quiz.QuestionData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuestionData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if question, err = api.svc.UpdateQuestion(ctx.Request().Context(), question, data); err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, question)
}

func (api *quizApi) destroyQuestion(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	question, err := api.svc.GetOwnedQuestion(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.svc.DeleteQuestion(ctx.Request().Context(), question); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Taking quizzes

func (api *quizApi) start(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	q, err := api.svc.Start(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) submit(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	var data quiz.SubmitQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitQuiz")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	quizSubmissions.Inc()
	return ctx.JSON(http.StatusCreated, res)
}

func (api *quizApi) result(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.GetResult(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
