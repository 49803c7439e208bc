// Package testutil provides a fake school API and fixtures for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/core/student"
)

const (
	AdminUsername = "admin"
	AdminPassword = "s3cret!"

	signingSecret = "test-signing-secret"
)

type route struct {
	method string
	path   string
}

// SchoolAPI is an in-memory school REST API served over HTTP. It is safe for concurrent use.
type SchoolAPI struct {
	srv *httptest.Server

	mu         sync.Mutex
	students   map[core.ID]student.Student
	nextID     int
	attendance []attendance.Record
	failures   map[route]int
	hits       map[route]int
	lastAuth   string
	lastWindow attendance.Window
}

// NewSchoolAPI starts a fake API, closed when the test ends.
func NewSchoolAPI(t *testing.T) *SchoolAPI {
	t.Helper()

	api := &SchoolAPI{
		students: make(map[core.ID]student.Student),
		nextID:   1,
		failures: make(map[route]int),
		hits:     make(map[route]int),
	}

	e := echo.New()
	e.HideBanner = true

	g := e.Group("/api")
	g.POST("/login", api.login)
	ag := g.Group("", api.authorize)
	ag.GET("/students", api.listStudents)
	ag.POST("/students", api.createStudent)
	ag.GET("/students/:id", api.getStudent)
	ag.PUT("/students/:id", api.updateStudent)
	ag.DELETE("/students/:id", api.deleteStudent)
	ag.GET("/attendance", api.getAttendance)

	api.srv = httptest.NewServer(e)
	t.Cleanup(api.srv.Close)
	return api
}

// BaseURL is the API root to configure clients with.
func (api *SchoolAPI) BaseURL() string { return api.srv.URL + "/api" }

// Close stops the server; later requests fail at the transport level.
func (api *SchoolAPI) Close() { api.srv.Close() }

// Token issues a bearer token the API accepts.
func Token(t *testing.T, username string, ttl time.Duration) string {
	t.Helper()
	token, err := sign(username, ttl)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	return token
}

func sign(username string, ttl time.Duration) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "1",
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
	}).SignedString([]byte(signingSecret))
}

// AddStudent stores `s`, assigning the next numeric ID when it has none.
func (api *SchoolAPI) AddStudent(s student.Student) student.Student {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.addStudentLocked(s)
}

func (api *SchoolAPI) addStudentLocked(s student.Student) student.Student {
	if s.ID == "" {
		s.ID = core.ID(strconv.Itoa(api.nextID))
		api.nextID++
	}
	if s.Status == "" {
		s.Status = student.StatusActive
	}
	if s.CreatedDate.IsZero() {
		s.CreatedDate = core.Date{Time: time.Now().UTC().Truncate(time.Second)}
	}
	api.students[s.ID] = s
	return s
}

// Students returns the stored students ordered by ID.
func (api *SchoolAPI) Students() []student.Student {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.sortedStudentsLocked()
}

func (api *SchoolAPI) sortedStudentsLocked() []student.Student {
	list := make([]student.Student, 0, len(api.students))
	for _, s := range api.students {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID.Less(list[j].ID) })
	return list
}

// SetAttendance replaces the attendance every query returns.
func (api *SchoolAPI) SetAttendance(records ...attendance.Record) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.attendance = records
}

// FailWith makes requests matching method & path (eg. "/students/:id") answer `status`.
// A status of 0 removes the failure.
func (api *SchoolAPI) FailWith(method, path string, status int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	r := route{method: method, path: "/api" + path}
	if status == 0 {
		delete(api.failures, r)
	} else {
		api.failures[r] = status
	}
}

// Hits returns how many requests matched method & path (eg. "/students").
func (api *SchoolAPI) Hits(method, path string) int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.hits[route{method: method, path: "/api" + path}]
}

// LastAuthorization returns the Authorization header of the last request.
func (api *SchoolAPI) LastAuthorization() string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.lastAuth
}

// LastWindow returns the month & year of the last attendance query.
func (api *SchoolAPI) LastWindow() attendance.Window {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.lastWindow
}

func (api *SchoolAPI) match(c echo.Context) error {
	api.mu.Lock()
	defer api.mu.Unlock()
	r := route{method: c.Request().Method, path: c.Path()}
	api.hits[r]++
	api.lastAuth = c.Request().Header.Get("Authorization")
	if status, ok := api.failures[r]; ok {
		return c.JSON(status, echo.Map{"message": http.StatusText(status)})
	}
	return nil
}

func (api *SchoolAPI) authorize(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == "" || raw == header {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing token"})
		}
		_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte(signingSecret), nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
		}
		return next(c)
	}
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

func (api *SchoolAPI) login(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	var lr loginRequest
	if err := c.Bind(&lr); err != nil {
		return err
	}
	if lr.Username != AdminUsername || lr.Password != AdminPassword {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid credentials"})
	}
	token, err := sign(lr.Username, time.Hour)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

func (api *SchoolAPI) listStudents(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	return c.JSON(http.StatusOK, api.Students())
}

func (api *SchoolAPI) createStudent(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	var ns student.NewStudent
	if err := c.Bind(&ns); err != nil {
		return err
	}
	dob, err := core.ParseDate(ns.DateOfBirth)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid dateOfBirth"})
	}
	s := student.Student{
		Username:    ns.Username,
		FirstName:   ns.FirstName,
		LastName:    ns.LastName,
		Email:       ns.Email,
		Phone:       ns.Phone,
		Gender:      ns.Gender,
		DateOfBirth: dob,
		Status:      ns.Status,
		CreatedBy:   student.Creator{ID: "1", Name: AdminUsername},
	}
	if ns.CardID != "" {
		card := ns.CardID
		s.CardID = &card
	}

	api.mu.Lock()
	s = api.addStudentLocked(s)
	api.mu.Unlock()
	return c.JSON(http.StatusCreated, s)
}

func (api *SchoolAPI) getStudent(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	api.mu.Lock()
	s, ok := api.students[core.ID(c.Param("id"))]
	api.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
	}
	return c.JSON(http.StatusOK, s)
}

func (api *SchoolAPI) updateStudent(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	id := core.ID(c.Param("id"))
	var s student.Student
	if err := c.Bind(&s); err != nil {
		return err
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if _, ok := api.students[id]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
	}
	s.ID = id
	api.students[id] = s
	return c.JSON(http.StatusOK, s)
}

func (api *SchoolAPI) deleteStudent(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	id := core.ID(c.Param("id"))

	api.mu.Lock()
	defer api.mu.Unlock()
	if _, ok := api.students[id]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "student not found"})
	}
	delete(api.students, id)
	return c.NoContent(http.StatusNoContent)
}

func (api *SchoolAPI) getAttendance(c echo.Context) error {
	if err := api.match(c); err != nil || c.Response().Committed {
		return err
	}
	month, _ := strconv.Atoi(c.QueryParam("month"))
	year, _ := strconv.Atoi(c.QueryParam("year"))

	api.mu.Lock()
	defer api.mu.Unlock()
	api.lastWindow = attendance.Window{Month: time.Month(month), Year: year}
	records := api.attendance
	if records == nil {
		records = []attendance.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

// Config returns a test configuration pointing at `baseURL`.
func Config(baseURL string) *core.Config {
	return &core.Config{
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		AppName:   "Masomo Admin",
		SecretKey: "test-secret-key",
		API:       core.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Session:   core.SessionConfig{RememberFor: 30 * 24 * time.Hour},
		Notifier: core.NotifierConfig{
			Interval: 10 * time.Millisecond,
			Location: time.UTC,
		},
	}
}

// Validator returns the app's validator with english messages.
func Validator() *validator.Validate {
	return core.NewValidator(core.NewTranslator())
}

// PresentOn builds an attendance item marked PRESENT on the given day.
func PresentOn(year int, month time.Month, day int) attendance.Item {
	d := core.NewDate(year, month, day)
	return attendance.Item{Day: day, Date: &d, Status: attendance.StatusPresent}
}

// AbsentOn builds an attendance item marked ABSENT on the given day.
func AbsentOn(year int, month time.Month, day int) attendance.Item {
	d := core.NewDate(year, month, day)
	return attendance.Item{Day: day, Date: &d, Status: attendance.StatusAbsent}
}
