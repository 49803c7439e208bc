package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/payment"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/services/apiclient"
	"github.com/trezcool/masomo-admin/services/notifier"
	"github.com/trezcool/masomo-admin/services/tokenstore"
)

var nowFunc = time.Now // mockable

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		API        *apiclient.Client
		Cookies    *tokenstore.CookieCodec
		Students   *state.Students
		Ledger     *payment.Ledger
		Toasts     notifier.Subscriber
		Validate   *validator.Validate
		Translator ut.Translator

		// NotifierTokens receives the token of every successful login, so that the notifier can poll
		// on behalf of the last signed-in admin. Optional.
		NotifierTokens tokenstore.TokenStore
		// Metrics is served under /metrics. Optional.
		Metrics http.Handler

		DisableReqLogs bool
	}

	Server struct {
		*Deps
		app      *echo.Echo
		renderer *renderer
		flashes  *flasher
		address  string
		shutdown chan os.Signal
		errors   chan error

		closing   chan struct{} // closed on shutdown, ends event streams
		closeOnce sync.Once
	}
)

// NewServer builds the admin web app. Passing a nil `shutdown` channel makes the server listen for
// SIGINT & SIGTERM.
func NewServer(address string, shutdown chan os.Signal, deps *Deps) (*Server, error) {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	}
	if deps.Logger == nil {
		deps.Logger = core.NopLogger
	}

	rdr, err := newRenderer()
	if err != nil {
		return nil, err
	}

	hashKey, blockKey := tokenstore.DeriveKeys(deps.Conf.SecretKey, "flash")
	flashStore := sessions.NewCookieStore(hashKey, blockKey)
	flashStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   deps.Conf.Session.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		Deps:     deps,
		app:      echo.New(),
		renderer: rdr,
		flashes:  &flasher{store: flashStore, logger: deps.Logger},
		address:  address,
		shutdown: shutdown,
		errors:   make(chan error, 1),
		closing:  make(chan struct{}),
	}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	debug := s.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromForm("_method"),
	}))
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.sessionMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s)
	s.app.Renderer = s.renderer
	s.app.Debug = debug

	s.app.GET("/healthz", s.healthz)
	if s.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.Metrics))
	}

	s.registerRoutes()

	s.app.RouteNotFound("/*", toLogin)
}

func (s *Server) registerRoutes() {
	guard := s.guardMiddleware

	// public
	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.login)
	s.app.POST("/logout", s.logout)

	// protected
	s.app.GET("/", func(c echo.Context) error { return c.Redirect(http.StatusSeeOther, "/dashboard") }, guard)
	s.app.GET("/dashboard", s.dashboard, guard)
	s.app.GET("/students", s.studentList, guard)
	s.app.POST("/students", s.studentCreate, guard)
	s.app.GET("/students/:id", s.studentDetail, guard)
	s.app.PUT("/students/:id", s.studentUpdate, guard)
	s.app.DELETE("/students/:id", s.studentDelete, guard)
	s.app.GET("/attendance", s.attendance, guard)
	s.app.GET("/payments", s.paymentList, guard)
	s.app.PUT("/payments/:id", s.paymentUpdate, guard)
	s.app.GET("/events", s.events, guard)
}

func (s *Server) Start() {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to stop gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.Conf.Build})
}

func toLogin(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/login")
}
