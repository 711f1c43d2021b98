package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/qa"
	"github.com/zuberi/fizikia/core/schedmail"
	"github.com/zuberi/fizikia/core/simulation"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
)

// conf is set by NewServer before any route is wired.
var conf *core.Config

type (
	// Deps regroups the Server's dependencies.
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       user.ServiceInterface
		AssignmentSvc assignment.ServiceInterface
		SubmissionSvc submission.ServiceInterface
		AppealSvc     appeal.ServiceInterface
		SchedmailSvc  schedmail.ServiceInterface
		QASvc         qa.ServiceInterface
		SimRegistry   *simulation.Registry
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		addr     string
		shutdown chan os.Signal
		deps     *Deps
		app      *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(addr string, shutdown chan os.Signal, deps *Deps) Server {
	conf = deps.Conf
	appJWTConfig.SigningKey = conf.SecretKey

	s := &server{
		addr:     addr,
		shutdown: shutdown,
		deps:     deps,
		app:      echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(api, jwt, s.deps.UserSvc, s.deps.Validate, s.deps.Translator)
	registerAssignmentAPI(api, jwt, s.deps)
	registerSubmissionAPI(api, jwt, s.deps)
	registerAppealAPI(api, jwt, s.deps)
	registerScheduledEmailAPI(api, jwt, s.deps)
	registerQaAPI(api, jwt, s.deps)
	registerSimulationAPI(api, jwt, s.deps)
}

// signalShutdown requests a graceful stop of the process.
func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.app.Logger.Fatal(err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Fizikia API!")
}
