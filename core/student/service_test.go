package student_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/student"
	"github.com/trezcool/masomo-admin/services/apiclient"
	"github.com/trezcool/masomo-admin/services/tokenstore"
	"github.com/trezcool/masomo-admin/tests"
)

func newService(t *testing.T) (*student.Service, *testutil.SchoolAPI) {
	t.Helper()
	api := testutil.NewSchoolAPI(t)
	client := apiclient.New(apiclient.Options{BaseURL: api.BaseURL()}).
		WithTokens(tokenstore.Static(testutil.Token(t, testutil.AdminUsername, time.Hour)))
	return student.NewService(client), api
}

func TestService(t *testing.T) {
	svc, api := newService(t)
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	created, err := svc.Create(ctx, student.NewStudent{
		Username:    "bwayne",
		Password:    "batman!",
		FirstName:   "Bruce",
		LastName:    "Wayne",
		Email:       "bruce@test.cd",
		Phone:       "+243 810 000 000",
		Gender:      student.GenderMale,
		DateOfBirth: "2010-02-19",
		CardID:      "BAT1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Bruce Wayne", created.FullName())
	assert.Equal(t, "BAT1", created.Card())
	assert.True(t, created.DateOfBirth.Equal(core.NewDate(2010, 2, 19).Time))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	got.Status = student.StatusInactive
	updated, err := svc.Update(ctx, got.ID, got)
	require.NoError(t, err)
	assert.Equal(t, student.StatusInactive, updated.Status)
	assert.Equal(t, student.StatusInactive, api.Students()[0].Status)

	require.NoError(t, svc.Delete(ctx, created.ID))
	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "a deleted student is gone on refetch")

	err = svc.Delete(ctx, created.ID)
	assert.True(t, apiclient.IsNotFound(err), "Delete() error = %v; want 404", err)

	_, err = svc.Get(ctx, "404")
	assert.True(t, apiclient.IsNotFound(err), "Get() error = %v; want 404", err)
}

func TestService_errors(t *testing.T) {
	svc, api := newService(t)
	ctx := context.Background()

	api.FailWith(http.MethodGet, "/students", http.StatusForbidden)
	_, err := svc.List(ctx)
	assert.True(t, apiclient.IsUnauthorized(err), "List() error = %v; want 403", err)

	api.FailWith(http.MethodPost, "/students", http.StatusConflict)
	_, err = svc.Create(ctx, student.NewStudent{Username: "dup", DateOfBirth: "2010-01-01"})
	assert.True(t, apiclient.IsStatus(err, http.StatusConflict), "Create() error = %v; want 409", err)

	api.Close()
	_, err = svc.List(ctx)
	assert.True(t, apiclient.IsNetwork(err), "List() error = %v; want network error", err)
}
