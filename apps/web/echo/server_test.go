package echoweb

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/payment"
	"github.com/trezcool/masomo-admin/core/student"
	"github.com/trezcool/masomo-admin/tests"
)

func TestServer_rememberMe(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name                 string
		remember             bool
		wantCookie           string
		wantAfterRestart     int
		wantLocationAfterRst string
	}{
		{name: "remembered", remember: true, wantCookie: "masomo_durable_token", wantAfterRestart: http.StatusOK},
		{name: "this session only", remember: false, wantCookie: "masomo_session_token", wantAfterRestart: http.StatusSeeOther, wantLocationAfterRst: "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBrowser(t, app)

			rec := b.login(tt.remember)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			require.Contains(t, b.cookies, tt.wantCookie)
			assert.Len(t, tokenCookies(b), 1, "the token is stored in exactly one tier")
			if tt.remember {
				assert.Greater(t, b.cookies[tt.wantCookie].MaxAge, 0)
			} else {
				assert.Zero(t, b.cookies[tt.wantCookie].MaxAge)
			}

			assert.Equal(t, http.StatusOK, b.get("/dashboard").Code)

			b.restart()
			rec = b.get("/dashboard")
			assert.Equal(t, tt.wantAfterRestart, rec.Code)
			assert.Equal(t, tt.wantLocationAfterRst, rec.Header().Get("Location"))
		})
	}
}

func TestServer_loginReplacesPreviousToken(t *testing.T) {
	app := newTestApp(t)
	b := newBrowser(t, app)

	require.Equal(t, http.StatusSeeOther, b.login(true).Code)
	require.Equal(t, http.StatusSeeOther, b.login(false).Code)
	assert.Equal(t, []string{"masomo_session_token"}, tokenCookies(b), "the remembered token is dropped")
	assert.Equal(t, http.StatusOK, b.get("/dashboard").Code)

	b.restart()
	rec := b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func tokenCookies(b *browser) []string {
	var names []string
	for _, name := range []string{"masomo_durable_token", "masomo_session_token"} {
		if _, ok := b.cookies[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func TestServer_login(t *testing.T) {
	app := newTestApp(t)
	b := newBrowser(t, app)

	runHTTPTests(t, b, []httpTest{
		{
			name:     "missing username",
			method:   http.MethodPost,
			path:     "/login",
			form:     url.Values{"password": {"lol"}},
			wantCode: http.StatusBadRequest,
			wantBody: []string{"this field is required"},
		},
		{
			name:         "wrong password",
			method:       http.MethodPost,
			path:         "/login",
			form:         url.Values{"username": {testutil.AdminUsername}, "password": {"lol"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/login",
		},
		{name: "error notice", path: "/login", wantCode: http.StatusOK, wantBody: []string{"Invalid username or password."}},
		{name: "notice is shown once", path: "/login", wantCode: http.StatusOK, notBody: []string{"Invalid username or password."}},
		{name: "still signed out", path: "/dashboard", wantCode: http.StatusSeeOther, wantLocation: "/login"},
	})

	t.Run("API down", func(t *testing.T) {
		app.api.FailWith(http.MethodPost, "/login", http.StatusInternalServerError)
		defer app.api.FailWith(http.MethodPost, "/login", 0)

		rec := b.login(true)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Empty(t, tokenCookies(b))
		assert.Contains(t, b.get("/login").Body.String(), "Could not sign in")
	})

	t.Run("notifier follows the last admin", func(t *testing.T) {
		require.Equal(t, http.StatusSeeOther, b.login(false).Code)
		token, ok := app.NotifierTokens.Read()
		require.True(t, ok)
		claims, ok := auth.PeekClaims(token)
		require.True(t, ok)
		assert.Equal(t, testutil.AdminUsername, claims.Username)
	})

	t.Run("notifier token is cleared by the admin's logout", func(t *testing.T) {
		require.Equal(t, http.StatusSeeOther, b.login(false).Code)
		app.NotifierTokens.Save("other-admin", false)
		require.Equal(t, http.StatusSeeOther, b.post("/logout", nil).Code)
		token, ok := app.NotifierTokens.Read()
		assert.True(t, ok, "the token of another admin is kept")
		assert.Equal(t, "other-admin", token)

		require.Equal(t, http.StatusSeeOther, b.login(false).Code)
		require.Equal(t, http.StatusSeeOther, b.post("/logout", nil).Code)
		_, ok = app.NotifierTokens.Read()
		assert.False(t, ok)
	})
}

func TestServer_students(t *testing.T) {
	app := newTestApp(t)
	john := app.api.AddStudent(student.Student{Username: "jdoe", FirstName: "John", LastName: "Doe", Email: "john@test.cd", Gender: student.GenderMale})
	jane := app.api.AddStudent(student.Student{Username: "jsmith", FirstName: "Jane", LastName: "Smith", Email: "jane@test.cd", Gender: student.GenderFemale})

	b := newBrowser(t, app)
	require.Equal(t, http.StatusSeeOther, b.login(false).Code)

	newStudent := url.Values{
		"username":    {"bwayne"},
		"password":    {"batman!"},
		"firstName":   {"Bruce"},
		"lastName":    {"Wayne"},
		"email":       {"bruce@test.cd"},
		"phone":       {"+243 810 000 000"},
		"gender":      {"MALE"},
		"dateOfBirth": {"2010-02-19"},
	}
	invalidStudent := url.Values{"username": {"x"}, "email": {"nope"}}

	runHTTPTests(t, b, []httpTest{
		{name: "list", path: "/students", wantCode: http.StatusOK, wantBody: []string{"John Doe", "Jane Smith", "2 students: 2 active, 0 inactive"}},
		{name: "search", path: "/students?search=smi", wantCode: http.StatusOK, wantBody: []string{"Jane Smith"}, notBody: []string{"John Doe"}},
		{name: "detail", path: "/students/" + jane.ID.String(), wantCode: http.StatusOK, wantBody: []string{"Jane Smith", "jane@test.cd"}},
		{name: "detail: not found", path: "/students/404", wantCode: http.StatusNotFound},
		{name: "create: invalid", method: http.MethodPost, path: "/students", form: invalidStudent, wantCode: http.StatusBadRequest, wantBody: []string{"this field is required", "John Doe"}},
		{name: "create", method: http.MethodPost, path: "/students", form: newStudent, wantCode: http.StatusSeeOther, wantLocation: "/students"},
		{name: "list after create", path: "/students", wantCode: http.StatusOK, wantBody: []string{"Student Bruce Wayne created successfully.", "Bruce Wayne", "3 students"}},
		{
			name:         "update",
			method:       http.MethodPost,
			path:         "/students/" + jane.ID.String(),
			form:         url.Values{"_method": {"PUT"}, "firstName": {"Janet"}, "status": {"inactive"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/students/" + jane.ID.String(),
		},
		{name: "detail after update", path: "/students/" + jane.ID.String(), wantCode: http.StatusOK, wantBody: []string{"Student updated successfully.", "Janet Smith", "inactive"}},
		{
			name:     "update: invalid",
			method:   http.MethodPost,
			path:     "/students/" + jane.ID.String(),
			form:     url.Values{"_method": {"PUT"}, "email": {"nope"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:         "delete",
			method:       http.MethodPost,
			path:         "/students/" + john.ID.String(),
			form:         url.Values{"_method": {"DELETE"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/students",
		},
		{name: "list after delete", path: "/students", wantCode: http.StatusOK, wantBody: []string{"Student deleted successfully.", "Janet Smith"}, notBody: []string{"John Doe"}},
		{
			name:         "delete: not found",
			method:       http.MethodPost,
			path:         "/students/" + john.ID.String(),
			form:         url.Values{"_method": {"DELETE"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/students",
		},
		{name: "not found notice", path: "/students", wantCode: http.StatusOK, wantBody: []string{"Student not found."}},
	})

	// the slice holds the last successful fetch
	list := app.Students.Snapshot()
	assert.Len(t, list.Items, 2)
	for _, s := range list.Items {
		assert.NotEqual(t, john.ID, s.ID)
	}
}

func TestServer_studentsAPIFailures(t *testing.T) {
	app := newTestApp(t)
	app.api.AddStudent(student.Student{Username: "jdoe", FirstName: "John", LastName: "Doe"})

	b := newBrowser(t, app)
	require.Equal(t, http.StatusSeeOther, b.login(true).Code)

	runHTTPTests(t, b, []httpTest{
		{name: "list", path: "/students", wantCode: http.StatusOK, wantBody: []string{"John Doe"}},
	})

	t.Run("failed fetch keeps the previous items", func(t *testing.T) {
		app.api.FailWith(http.MethodGet, "/students", http.StatusInternalServerError)
		defer app.api.FailWith(http.MethodGet, "/students", 0)

		checkResponse(t, httpTest{wantCode: http.StatusOK, wantBody: []string{"Could not load students", "John Doe"}}, b.get("/students"))
	})

	t.Run("rejected token signs out", func(t *testing.T) {
		app.api.FailWith(http.MethodGet, "/students", http.StatusUnauthorized)
		defer app.api.FailWith(http.MethodGet, "/students", 0)

		checkResponse(t, httpTest{wantCode: http.StatusSeeOther, wantLocation: "/login"}, b.get("/students"))
		assert.Empty(t, tokenCookies(b))
		checkResponse(t, httpTest{wantCode: http.StatusSeeOther, wantLocation: "/login"}, b.get("/dashboard"))
		checkResponse(t, httpTest{wantCode: http.StatusOK, wantBody: []string{msgSessionExpired}}, b.get("/login"))
	})
}

func TestServer_attendance(t *testing.T) {
	app := newTestApp(t)
	app.api.SetAttendance(attendance.Record{
		Student: attendance.StudentRef{ID: "1", Name: "John Doe"},
		Items:   []attendance.Item{testutil.PresentOn(2024, time.March, 4)},
	})

	b := newBrowser(t, app)
	require.Equal(t, http.StatusSeeOther, b.login(false).Code)

	runHTTPTests(t, b, []httpTest{
		{
			name:     "march 2024",
			path:     "/attendance?month=3&year=2024",
			wantCode: http.StatusOK,
			wantBody: []string{"Attendance: March 2024", "John Doe", "February 2024", "April 2024", "4.8%"},
		},
	})
	assert.Equal(t, attendance.Window{Month: time.March, Year: 2024}, app.api.LastWindow())
}

func TestServer_dashboard(t *testing.T) {
	app := newTestApp(t)
	defer func(f func() time.Time) { nowFunc = f }(nowFunc)
	nowFunc = func() time.Time { return time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC) }

	app.api.AddStudent(student.Student{Username: "jdoe", FirstName: "John", LastName: "Doe"})
	app.api.AddStudent(student.Student{Username: "jsmith", FirstName: "Jane", LastName: "Smith", Status: student.StatusInactive})
	app.api.SetAttendance(
		attendance.Record{Student: attendance.StudentRef{ID: "1", Name: "John Doe"}, Items: []attendance.Item{testutil.PresentOn(2024, time.March, 5)}},
		attendance.Record{Student: attendance.StudentRef{ID: "2", Name: "Jane Smith"}, Items: []attendance.Item{testutil.AbsentOn(2024, time.March, 5)}},
	)

	b := newBrowser(t, app)
	require.Equal(t, http.StatusSeeOther, b.login(false).Code)

	runHTTPTests(t, b, []httpTest{
		{
			name:     "counters",
			path:     "/dashboard",
			wantCode: http.StatusOK,
			wantBody: []string{"1 active, 1 inactive", "<p>1</p><small>2024-03-05</small>", "3 / 7 paid"},
		},
	})

	t.Run("a failing panel does not cancel the other", func(t *testing.T) {
		app.Students.Changed()
		app.api.FailWith(http.MethodGet, "/attendance", http.StatusInternalServerError)
		defer app.api.FailWith(http.MethodGet, "/attendance", 0)
		checkResponse(t, httpTest{wantCode: http.StatusOK, wantBody: []string{"Could not load attendance", "1 active, 1 inactive"}}, b.get("/dashboard"))
	})

	t.Run("API down", func(t *testing.T) {
		app.Students.Changed()
		app.api.Close()
		checkResponse(t, httpTest{wantCode: http.StatusOK, wantBody: []string{msgAPIUnreachable}}, b.get("/dashboard"))
	})
}

func TestServer_payments(t *testing.T) {
	app := newTestApp(t)
	b := newBrowser(t, app)
	require.Equal(t, http.StatusSeeOther, b.login(false).Code)

	runHTTPTests(t, b, []httpTest{
		{name: "all", path: "/payments", wantCode: http.StatusOK, wantBody: []string{"John Doe", "Robert Johnson", "3 / 7"}},
		{name: "overdue", path: "/payments?status=overdue", wantCode: http.StatusOK, wantBody: []string{"Robert Johnson", "David Taylor"}, notBody: []string{"John Doe"}},
		{name: "invalid filter", path: "/payments?status=lol", wantCode: http.StatusBadRequest},
		{
			name:         "mark paid",
			method:       http.MethodPost,
			path:         "/payments/3",
			form:         url.Values{"_method": {"PUT"}, "status": {"paid"}, "filter": {"overdue"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/payments?status=overdue",
		},
		{name: "overdue after payment", path: "/payments?status=overdue", wantCode: http.StatusOK, wantBody: []string{"Payment of Robert Johnson marked paid.", "David Taylor"}, notBody: []string{"Robert Johnson</td>"}},
		{
			name:     "unknown payment",
			method:   http.MethodPost,
			path:     "/payments/99",
			form:     url.Values{"_method": {"PUT"}, "status": {"paid"}},
			wantCode: http.StatusNotFound,
		},
		{
			name:         "invalid status",
			method:       http.MethodPost,
			path:         "/payments/3",
			form:         url.Values{"_method": {"PUT"}, "status": {"lol"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/payments",
		},
	})

	paid := app.Ledger.List(payment.StatusPaid)
	assert.Len(t, paid, 4)
}
