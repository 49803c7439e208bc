package echoweb

import (
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/services/apiclient"
	logsvc "github.com/trezcool/masomo-admin/services/logger"
)

const (
	ctxAuthKey = "auth"

	flashSession = "masomo_flash"
	flashSuccess = "success"
	flashError   = "error"
)

var errAuthNotFoundInCtx = errors.New("auth slice not found in echo.Context")

// sessionMiddleware boots the auth slice of every request from its cookies.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		a := state.NewAuth(s.Cookies.Store(c.Response(), c.Request()))
		a.Initialize()
		c.Set(ctxAuthKey, a)
		return next(c)
	}
}

func getContextAuth(c echo.Context) (*state.Auth, error) {
	a, ok := c.Get(ctxAuthKey).(*state.Auth)
	if !ok || a == nil {
		return nil, errAuthNotFoundInCtx
	}
	return a, nil
}

// apiFor returns the API client authorized with the request's token.
func (s *Server) apiFor(c echo.Context) (*apiclient.Client, error) {
	a, err := getContextAuth(c)
	if err != nil {
		return nil, err
	}
	return s.API.WithTokens(a), nil
}

// person identifies the signed-in admin in error reports.
func person(c echo.Context) logsvc.Person {
	a, err := getContextAuth(c)
	if err != nil {
		return logsvc.Person{}
	}
	claims, _ := auth.PeekClaims(a.Session().Token)
	return logsvc.Person{ID: claims.Subject, Username: claims.Username}
}

type flashes struct {
	Success []string
	Error   []string
}

// flasher keeps transient notices in a browser-session cookie until the next page render.
type flasher struct {
	store  sessions.Store
	logger core.Logger
}

func (f *flasher) add(c echo.Context, kind, msg string) {
	sess, err := f.store.Get(c.Request(), flashSession)
	if err != nil {
		// undecodable cookie: sess is a fresh session
		f.logger.Debug("discarding flash session", err)
	}
	sess.AddFlash(msg, kind)
	if err = sess.Save(c.Request(), c.Response()); err != nil {
		f.logger.Error("saving flash session", err)
	}
}

func (f *flasher) success(c echo.Context, msg string) { f.add(c, flashSuccess, msg) }

func (f *flasher) error(c echo.Context, msg string) { f.add(c, flashError, msg) }

// pop returns and clears the pending notices.
func (f *flasher) pop(c echo.Context) flashes {
	var fl flashes
	sess, _ := f.store.Get(c.Request(), flashSession)

	strs := func(vals []interface{}) []string {
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	fl.Success = strs(sess.Flashes(flashSuccess))
	fl.Error = strs(sess.Flashes(flashError))
	if len(fl.Success)+len(fl.Error) == 0 {
		return fl
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		f.logger.Error("saving flash session", err)
	}
	return fl
}
