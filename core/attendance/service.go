package attendance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/services/apiclient"
)

// Service reads attendance snapshots from the school API.
type Service struct {
	api apiclient.Doer
}

func NewService(api apiclient.Doer) *Service {
	return &Service{api: api}
}

// Fetch returns every student's attendance for the window.
func (svc *Service) Fetch(ctx context.Context, w Window) ([]Record, error) {
	q := url.Values{}
	q.Set("month", strconv.Itoa(int(w.Month)))
	q.Set("year", strconv.Itoa(w.Year))

	var records []Record
	if err := svc.api.Request(ctx, http.MethodGet, "/attendance?"+q.Encode(), nil, &records); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("fetching attendance for %d/%d", w.Month, w.Year))
	}
	return records, nil
}
