package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/auth"
)

type loginForm struct {
	Username   string
	RememberMe bool
	Errors     map[string]string
}

func (s *Server) loginPage(c echo.Context) error {
	a, err := getContextAuth(c)
	if err != nil {
		return errors.Wrap(err, "getting context auth")
	}
	if a.Session().IsAuthenticated {
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}
	return s.render(c, http.StatusOK, "login", "Sign in", loginForm{})
}

func (s *Server) login(c echo.Context) error {
	a, err := getContextAuth(c)
	if err != nil {
		return errors.Wrap(err, "getting context auth")
	}

	var lr auth.LoginRequest
	if err = c.Bind(&lr); err != nil {
		return err
	}
	if err = lr.Validate(s.Validate); err != nil {
		form := loginForm{Username: lr.Username, RememberMe: lr.RememberMe, Errors: s.fieldErrors(err)}
		return s.render(c, http.StatusBadRequest, "login", "Sign in", form)
	}

	// a failed login never touches the session
	resp, err := auth.NewService(s.API).Login(c.Request().Context(), lr)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.flashes.error(c, "Invalid username or password.")
		} else {
			s.Logger.Warn("login failed", err)
			s.flashes.error(c, noticeFor(err, "Could not sign in"))
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	if err = a.LoginSuccess(resp.Token, lr.RememberMe); err != nil {
		return errors.Wrap(err, "storing session")
	}
	if s.NotifierTokens != nil {
		s.NotifierTokens.Save(resp.Token, false)
	}

	s.flashes.success(c, "Signed in successfully.")
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (s *Server) logout(c echo.Context) error {
	a, err := getContextAuth(c)
	if err != nil {
		return errors.Wrap(err, "getting context auth")
	}
	// the notifier stops polling on behalf of an admin who signed out
	if s.NotifierTokens != nil {
		if token, ok := s.NotifierTokens.Read(); ok && token == a.Session().Token {
			s.NotifierTokens.Clear()
		}
	}
	a.Logout()
	s.flashes.success(c, "Signed out.")
	return c.Redirect(http.StatusSeeOther, "/login")
}
