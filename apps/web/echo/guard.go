package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-admin/core/state"
)

// Outcome is what the guard does with a request for a protected page.
type Outcome int

const (
	// OutcomePlaceholder shows a loading placeholder while the session is not yet known.
	OutcomePlaceholder Outcome = iota
	// OutcomeAdmit renders the requested page.
	OutcomeAdmit
	// OutcomeRedirect sends the user to the login page; the requested location is discarded.
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdmit:
		return "admit"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "placeholder"
	}
}

// Decide maps each session state to exactly one outcome.
func Decide(sess state.Session) Outcome {
	switch sess.Status() {
	case state.StatusAuthenticated:
		return OutcomeAdmit
	case state.StatusUnauthenticated:
		return OutcomeRedirect
	default:
		return OutcomePlaceholder
	}
}

func (s *Server) guardMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var sess state.Session
		if a, err := getContextAuth(c); err == nil {
			sess = a.Session()
		} else {
			sess = state.Session{IsLoading: true}
		}

		switch Decide(sess) {
		case OutcomeAdmit:
			return next(c)
		case OutcomeRedirect:
			return toLogin(c)
		default:
			c.Response().Header().Set("Refresh", "1")
			return s.render(c, http.StatusOK, "loading", "Loading...", nil)
		}
	}
}
