package echoweb

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

type attendanceData struct {
	Grid   attendance.Grid
	Prev   attendance.Window
	Next   attendance.Window
	Notice string
}

func (s *Server) attendance(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}

	// invalid or missing values fall back to the current month
	month, _ := strconv.Atoi(c.QueryParam("month"))
	year, _ := strconv.Atoi(c.QueryParam("year"))
	window := attendance.Window{Month: time.Month(month), Year: year}.Resolve(nowFunc())

	data := attendanceData{Prev: window.Prev(), Next: window.Next()}
	records, err := attendance.NewService(api).Fetch(c.Request().Context(), window)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		s.Logger.Warn("fetching attendance", err)
		data.Notice = noticeFor(err, "Could not load attendance")
	}
	data.Grid = attendance.BuildGrid(window, records)

	return s.render(c, http.StatusOK, "attendance", "Attendance", data)
}
