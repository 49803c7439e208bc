package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/core/student"
	"github.com/trezcool/masomo-admin/services/apiclient"
	"github.com/trezcool/masomo-admin/services/tokenstore"
	"github.com/trezcool/masomo-admin/tests"
)

// syncBuffer is written to by the notifier goroutine while tests read it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newCLI simulates one run of the binary: a fresh session tier and the credentials file as durable tier.
func newCLI(t *testing.T, api *testutil.SchoolAPI, credentials string) (*commandLine, *syncBuffer) {
	t.Helper()
	conf := testutil.Config(api.BaseURL())
	conf.CLI.CredentialsFile = credentials
	translator := core.NewTranslator()
	out := new(syncBuffer)
	return &commandLine{
		conf:   conf,
		logger: core.NopLogger,
		api:    apiclient.New(apiclient.Options{BaseURL: conf.API.BaseURL}),
		auth: state.NewAuth(tokenstore.New(
			tokenstore.NewFileTier(credentials, core.NopLogger),
			tokenstore.NewMemoryTier(),
		)),
		students:   state.NewStudents(),
		validate:   core.NewValidator(translator),
		translator: translator,
		out:        out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string
	extra      interface{}
}

func runCLITests(t *testing.T, api *testutil.SchoolAPI, credentials string, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if pwd, ok := tt.extra.(string); ok {
				return []byte(pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			cli, out := newCLI(t, api, credentials)
			err := cli.run(context.Background(), args)
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	api := testutil.NewSchoolAPI(t)
	credentials := filepath.Join(t.TempDir(), "credentials.json")

	runCLITests(t, api, credentials, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: []string{"Usage:"}},
		{name: "login: no args", args: []string{"login"}, wantErr: errHelp},
		{name: "login: username but no password", args: []string{"login", "-username", "admin"}, wantErr: errHelp},
		{name: "students: not signed in", args: []string{"students"}, wantErr: errNotSignedIn},
		{name: "attendance: not signed in", args: []string{"attendance"}, wantErr: errNotSignedIn},
		{name: "watch: not signed in", args: []string{"watch"}, wantErr: errNotSignedIn},
		{name: "status: not signed in", args: []string{"status"}, wantOut: []string{"Not signed in."}},
	})
}

func Test_commandLine_login(t *testing.T) {
	api := testutil.NewSchoolAPI(t)
	credentials := filepath.Join(t.TempDir(), "credentials.json")

	runCLITests(t, api, credentials, []cliTest{
		{name: "wrong password", args: []string{"login", "-username", testutil.AdminUsername}, extra: "nope", wantErr: auth.ErrInvalidCredentials},
		{name: "blank username", args: []string{"login", "-username", "   "}, extra: "nope", wantErrStr: "invalid input"},
		// the session tier does not outlive the run
		{name: "login for this run only", args: []string{"login", "-username", testutil.AdminUsername}, extra: testutil.AdminPassword, wantOut: []string{"for this run only"}},
		{name: "next run is signed out", args: []string{"status"}, wantOut: []string{"Not signed in."}},
		{name: "remembered login", args: []string{"login", "-username", testutil.AdminUsername, "-remember"}, extra: testutil.AdminPassword, wantOut: []string{"Signed in as admin."}},
		{name: "next run is signed in", args: []string{"status"}, wantOut: []string{"Signed in as admin until"}},
		{name: "a failed login keeps the session", args: []string{"login", "-username", testutil.AdminUsername}, extra: "nope", wantErr: auth.ErrInvalidCredentials},
		{name: "still signed in", args: []string{"status"}, wantOut: []string{"Signed in as admin"}},
		{name: "logout", args: []string{"logout"}, wantOut: []string{"Signed out."}},
		{name: "signed out after logout", args: []string{"status"}, wantOut: []string{"Not signed in."}},
	})
}

func Test_commandLine_students(t *testing.T) {
	api := testutil.NewSchoolAPI(t)
	credentials := filepath.Join(t.TempDir(), "credentials.json")
	api.AddStudent(student.Student{Username: "jdoe", FirstName: "John", LastName: "Doe", Email: "john@test.cd"})
	api.AddStudent(student.Student{Username: "jsmith", FirstName: "Jane", LastName: "Smith", Email: "jane@test.cd", Status: student.StatusInactive})

	runCLITests(t, api, credentials, []cliTest{
		{name: "login", args: []string{"login", "-username", testutil.AdminUsername, "-remember"}, extra: testutil.AdminPassword},
		{name: "all", args: []string{"students"}, wantOut: []string{"John Doe", "Jane Smith", "2 of 2 students (1 active, 1 inactive)"}},
		{name: "search", args: []string{"students", "-search", "SMITH"}, wantOut: []string{"Jane Smith", "1 of 2 students"}},
	})

	t.Run("expired session signs out", func(t *testing.T) {
		api.FailWith("GET", "/students", 401)
		defer api.FailWith("GET", "/students", 0)

		cli, _ := newCLI(t, api, credentials)
		err := cli.run(context.Background(), []string{"admin", "students"})
		assert.True(t, errors.Is(err, errNotSignedIn), "cli.run() error = %v", err)

		cli, out := newCLI(t, api, credentials)
		require.NoError(t, cli.run(context.Background(), []string{"admin", "status"}))
		assert.Contains(t, out.String(), "Not signed in.")
	})
}

func Test_commandLine_attendance(t *testing.T) {
	api := testutil.NewSchoolAPI(t)
	credentials := filepath.Join(t.TempDir(), "credentials.json")
	api.SetAttendance(
		attendance.Record{
			Student: attendance.StudentRef{ID: "1", Name: "John Doe"},
			Items:   []attendance.Item{testutil.PresentOn(2024, time.March, 4), testutil.PresentOn(2024, time.March, 5)},
		},
		attendance.Record{
			Student: attendance.StudentRef{ID: "2", Name: "Jane Smith"},
			Items:   []attendance.Item{testutil.AbsentOn(2024, time.March, 4), testutil.PresentOn(2024, time.March, 5)},
		},
	)

	runCLITests(t, api, credentials, []cliTest{
		{name: "login", args: []string{"login", "-username", testutil.AdminUsername, "-remember"}, extra: testutil.AdminPassword},
		{
			name:    "march 2024",
			args:    []string{"attendance", "-month", "3", "-year", "2024"},
			wantOut: []string{"Attendance for March 2024", "John Doe", "Jane Smith", "21 school days, 2 students: 3 present (7.1%)"},
		},
	})
	assert.Equal(t, attendance.Window{Month: time.March, Year: 2024}, api.LastWindow())
}

func Test_commandLine_watch(t *testing.T) {
	api := testutil.NewSchoolAPI(t)
	credentials := filepath.Join(t.TempDir(), "credentials.json")

	yesterday := core.Yesterday(time.Now().UTC())
	twoDaysAgo := yesterday.AddDate(0, 0, -1)
	record := func(id core.ID, name string, d time.Time) attendance.Record {
		return attendance.Record{
			Student: attendance.StudentRef{ID: id, Name: name},
			Items:   []attendance.Item{testutil.PresentOn(d.Year(), d.Month(), d.Day())},
		}
	}
	api.SetAttendance(record("1", "John Doe", twoDaysAgo))

	runCLITests(t, api, credentials, []cliTest{
		{name: "login", args: []string{"login", "-username", testutil.AdminUsername, "-remember"}, extra: testutil.AdminPassword},
	})

	cli, out := newCLI(t, api, credentials)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cli.run(ctx, []string{"admin", "watch", "-interval", "10ms"}) }()

	// the first observation is adopted silently
	require.Eventually(t, func() bool { return api.Hits("GET", "/attendance") >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.NotContains(t, out.String(), "arrived")

	api.SetAttendance(record("1", "John Doe", twoDaysAgo), record("2", "Jane Smith", yesterday.Time))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Jane Smith - arrived.") }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancellation")
	}
	assert.Equal(t, 1, strings.Count(out.String(), "arrived."))
}
