package echoweb

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const keepAliveInterval = 15 * time.Second

// events streams arrival toasts as server-sent events until the client goes away.
func (s *Server) events(c echo.Context) error {
	if s.Toasts == nil {
		return c.NoContent(http.StatusNoContent)
	}

	toasts, cancel := s.Toasts.Subscribe()
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closing:
			return nil
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case t, ok := <-toasts:
			if !ok {
				return nil
			}
			data, err := json.Marshal(t)
			if err != nil {
				return errors.Wrap(err, "encoding toast")
			}
			if _, err = fmt.Fprintf(res, "id: %s\nevent: toast\ndata: %s\n\n", t.ID, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
