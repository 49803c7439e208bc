package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/core/payment"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/core/student"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

type dashboardData struct {
	TotalStudents    int
	ActiveStudents   int
	InactiveStudents int
	PresentYesterday int
	Yesterday        core.Date
	Payments         payment.Summary
	Notices          []string
}

func (s *Server) dashboard(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}
	yesterday := core.Yesterday(nowFunc())

	var (
		list                     state.StudentList
		records                  []attendance.Record
		studentsErr, presenceErr error
	)
	// the panels fail independently: one failing call must not cancel the other
	var g errgroup.Group
	ctx := c.Request().Context()
	g.Go(func() error {
		list, studentsErr = s.Students.Load(ctx, student.NewService(api).List)
		return nil
	})
	g.Go(func() error {
		records, presenceErr = attendance.NewService(api).Fetch(ctx, attendance.WindowOf(yesterday.Time))
		return nil
	})
	_ = g.Wait()

	data := dashboardData{
		Yesterday: yesterday,
		Payments:  s.Ledger.Summary(),
	}
	for _, e := range []struct {
		err    error
		notice string
	}{
		{studentsErr, "Could not load students"},
		{presenceErr, "Could not load attendance"},
	} {
		if e.err == nil {
			continue
		}
		if apiclient.IsUnauthorized(e.err) {
			return e.err
		}
		s.Logger.Warn("dashboard", e.err)
		data.Notices = append(data.Notices, noticeFor(e.err, e.notice))
	}

	data.TotalStudents = len(list.Items)
	data.ActiveStudents, data.InactiveStudents = student.Counts(list.Items)
	data.PresentYesterday = attendance.PresentOn(records, yesterday)

	return s.render(c, http.StatusOK, "dashboard", "Dashboard", data)
}
