package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

const (
	msgAPIUnreachable = "The school API is unreachable, please try again later."
	msgAPIRejected    = "The school API could not process the request."
	msgSessionExpired = "Your session has expired, please sign in again."
)

type errorPage struct {
	Code    int
	Message string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// The Server is gracefully shut down whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(s *Server) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var code int
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = fmt.Sprint(origErr.Message)
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case *apiclient.HTTPError:
			switch {
			case apiclient.IsUnauthorized(origErr):
				// the API no longer accepts the stored token
				if a, aErr := getContextAuth(c); aErr == nil {
					a.Logout()
				}
				if !c.Response().Committed {
					s.flashes.error(c, msgSessionExpired)
					if rErr := toLogin(c); rErr != nil {
						s.Logger.Error("redirecting to login", rErr)
					}
				}
				return
			case apiclient.IsNotFound(origErr):
				code = http.StatusNotFound
				message = http.StatusText(http.StatusNotFound)
			default:
				code = http.StatusBadGateway
				message = msgAPIRejected
			}
		case *apiclient.NetworkError:
			code = http.StatusBadGateway
			message = msgAPIUnreachable
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
		}

		if core.IsShutdown(err) {
			s.SignalShutdown()
		}
		if code >= http.StatusInternalServerError {
			s.Logger.Error(fmt.Sprintf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err), err, person(c))
		}
		if c.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead { // Issue #608
				err = c.NoContent(code)
			} else {
				err = s.render(c, code, "error", http.StatusText(code), errorPage{Code: code, Message: message})
			}
			if err != nil {
				s.Logger.Error("rendering error page", err)
			}
		}
	}
}

// noticeFor turns a service error into a message fit for a flash notice.
func noticeFor(err error, fallback string) string {
	switch {
	case apiclient.IsNetwork(err):
		return msgAPIUnreachable
	case apiclient.IsStatus(err, http.StatusBadRequest), apiclient.IsStatus(err, http.StatusConflict):
		var herr *apiclient.HTTPError
		if errors.As(err, &herr) && len(herr.Body) > 0 && len(herr.Body) < 200 {
			return fallback + ": " + string(herr.Body)
		}
		return fallback
	default:
		return fallback
	}
}
