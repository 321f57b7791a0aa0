package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizroom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizroom_http_request_duration_seconds",
			Help:    "Time spent processing HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizroom_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)

	quizSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizroom_quiz_submissions_total",
			Help: "Total number of graded quiz submissions",
		},
	)
)

// metricsMiddleware records every request under its route pattern.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		status := ctx.Response().Status
		if herr, ok := err.(*echo.HTTPError); ok {
			status = herr.Code
		}
		path := ctx.Path()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(ctx.Request().Method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(ctx.Request().Method, path).Observe(time.Since(start).Seconds())
		return err
	}
}
