package student

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

// Service maps student operations to the school API. It neither retries nor caches.
type Service struct {
	api apiclient.Doer
}

func NewService(api apiclient.Doer) *Service {
	return &Service{api: api}
}

func path(id core.ID) string {
	return "/students/" + url.PathEscape(id.String())
}

func (svc *Service) List(ctx context.Context) ([]Student, error) {
	var students []Student
	if err := svc.api.Request(ctx, http.MethodGet, "/students", nil, &students); err != nil {
		return nil, errors.Wrap(err, "listing students")
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

func (svc *Service) Get(ctx context.Context, id core.ID) (Student, error) {
	var s Student
	if err := svc.api.Request(ctx, http.MethodGet, path(id), nil, &s); err != nil {
		return Student{}, errors.Wrapf(err, "getting student %s", id)
	}
	return s, nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	var s Student
	if err := svc.api.Request(ctx, http.MethodPost, "/students", ns, &s); err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return s, nil
}

// Update sends the full updated record, as the API expects.
func (svc *Service) Update(ctx context.Context, id core.ID, s Student) (Student, error) {
	var updated Student
	if err := svc.api.Request(ctx, http.MethodPut, path(id), s, &updated); err != nil {
		return Student{}, errors.Wrapf(err, "updating student %s", id)
	}
	if updated.ID == "" { // some deployments answer with an empty body
		updated = s
	}
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, id core.ID) error {
	return errors.Wrapf(svc.api.Request(ctx, http.MethodDelete, path(id), nil, nil), "deleting student %s", id)
}
