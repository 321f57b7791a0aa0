// Package dig_container wires the API dependencies with go.uber.org/dig.
package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/quizroom/apps/api/echo"
	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/report"
	"github.com/trezcool/quizroom/core/user"
	emailsvc "github.com/trezcool/quizroom/services/email"
	eventsvc "github.com/trezcool/quizroom/services/events"
	logsvc "github.com/trezcool/quizroom/services/logger"
	oauthsvc "github.com/trezcool/quizroom/services/oauth"
	"github.com/trezcool/quizroom/storage/cache"
	"github.com/trezcool/quizroom/storage/database"
	inmemdb "github.com/trezcool/quizroom/storage/database/inmem"
	sqlxrepos "github.com/trezcool/quizroom/storage/database/sqlx"
)

// MemoryEngine keeps every table in memory. Data is lost on restart.
const MemoryEngine = "memory"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are provided together since they share a single connection pool.
type Repositories struct {
	dig.Out

	DB         *sqlx.DB // nil with the memory engine
	Users      user.Repository
	Classrooms classroom.Repository
	Quizzes    quiz.Repository
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Blacklist  core.TokenBlacklist
	OAuth      user.OAuthProvider
	Shutdown   chan os.Signal

	UserSvc      user.Service
	ClassroomSvc classroom.Service
	QuizSvc      quiz.Service
	ReportSvc    report.Service
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == MemoryEngine {
		loggerParam.Logger.Warn("using the in-memory database")
		db := inmemdb.Open()
		return Repositories{
			Users:      inmemdb.NewUserRepository(db),
			Classrooms: inmemdb.NewClassroomRepository(db),
			Quizzes:    inmemdb.NewQuizRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:         db,
		Users:      sqlxrepos.NewUserRepository(db),
		Classrooms: sqlxrepos.NewClassroomRepository(db),
		Quizzes:    sqlxrepos.NewQuizRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newEventPublisher publishes to RabbitMQ when configured and logs the events otherwise.
func newEventPublisher(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.RabbitMQ.URI == "" {
		return eventsvc.NewLogPublisher(logger)
	}
	pub, err := eventsvc.NewRabbitPublisher(conf, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("rabbitmq unavailable, logging events instead: %v", err), err)
		return eventsvc.NewLogPublisher(logger)
	}
	return pub
}

func newTokenBlacklist(conf *core.Config, logger core.Logger) core.TokenBlacklist {
	if conf.Redis.Address == "" {
		return cache.NewMemoryBlacklist()
	}
	client := cache.NewRedisClient(conf)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return cache.NewRedisBlacklist(client)
}

func newOAuthProvider(conf *core.Config) user.OAuthProvider {
	if !conf.Google.Enabled() {
		return nil
	}
	return oauthsvc.NewGoogleProvider(conf)
}

func classroomReader(svc classroom.Service) classroom.Reader { return svc }

func newShutdownChannel() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(p.Conf.Server.Host, p.Shutdown, &echoapi.Deps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Blacklist:    p.Blacklist,
		OAuth:        p.OAuth,
		UserSvc:      p.UserSvc,
		ClassroomSvc: p.ClassroomSvc,
		QuizSvc:      p.QuizSvc,
		ReportSvc:    p.ReportSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newTokenBlacklist))
	must(c.Provide(newOAuthProvider))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(classroom.NewService))
	must(c.Provide(classroomReader))
	must(c.Provide(quiz.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(newShutdownChannel))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
