package echoweb

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/payment"
)

var paymentStatuses = []payment.Status{payment.StatusPaid, payment.StatusPending, payment.StatusOverdue}

type paymentsData struct {
	Filter   payment.Status
	Statuses []payment.Status
	Payments []payment.Payment
	Summary  payment.Summary
}

func (s *Server) paymentList(c echo.Context) error {
	status, err := payment.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	data := paymentsData{
		Filter:   status,
		Statuses: paymentStatuses,
		Payments: s.Ledger.List(status),
		Summary:  s.Ledger.Summary(),
	}
	return s.render(c, http.StatusOK, "payments", "Payments", data)
}

func (s *Server) paymentUpdate(c echo.Context) error {
	back := "/payments"
	if filter := c.FormValue("filter"); filter != "" {
		back += "?" + url.Values{"status": {filter}}.Encode()
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}

	p, err := s.Ledger.SetStatus(id, payment.Status(c.FormValue("status")))
	switch {
	case errors.Is(err, payment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	case errors.Is(err, payment.ErrInvalidStatus):
		s.flashes.error(c, "Invalid payment status.")
	case err != nil:
		return errors.Wrap(err, "setting payment status")
	default:
		s.flashes.success(c, "Payment of "+p.Student+" marked "+string(p.Status)+".")
	}
	return c.Redirect(http.StatusSeeOther, back)
}
