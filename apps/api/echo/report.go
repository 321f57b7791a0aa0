package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/quizroom/core/report"
	"github.com/trezcool/quizroom/core/user"
)

type reportApi struct {
	svc  report.Service
	auth *Authenticator
}

func registerReportAPI(g *echo.Group, jwt []echo.MiddlewareFunc, deps *Deps, auth *Authenticator) {
	api := reportApi{svc: deps.ReportSvc, auth: auth}
	teacherOnly := auth.roleMiddleware(user.RoleTeacher)

	g.GET("/dashboard", api.dashboard, withMiddleware(jwt, auth.roleMiddleware(user.RoleTeacher, user.RoleStudent))...)
	g.GET("/quizzes/:id/analytics", api.quizAnalytics, withMiddleware(jwt, teacherOnly)...)
	g.GET("/quizzes/:id/report", api.quizReport, withMiddleware(jwt, teacherOnly)...)
	g.POST("/quizzes/:id/report/email", api.emailQuizReport, withMiddleware(jwt, teacherOnly)...)
	g.GET("/classrooms/:id/gradebook", api.gradebook, withMiddleware(jwt, teacherOnly)...)
}

func attachment(ctx echo.Context, f report.File) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Name))
	return ctx.Blob(http.StatusOK, f.ContentType, f.Content)
}

// Handlers

func (api *reportApi) dashboard(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Dashboard(ctx.Request().Context(), usr, ctx.QueryParam("classroom_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reportApi) quizAnalytics(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.QuizAnalytics(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reportApi) quizReport(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.QuizReportPDF(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return attachment(ctx, f)
}

func (api *reportApi) emailQuizReport(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.EmailQuizReport(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The report has been sent to " + usr.Email + "."})
}

func (api *reportApi) gradebook(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.GradebookXLSX(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return attachment(ctx, f)
}
