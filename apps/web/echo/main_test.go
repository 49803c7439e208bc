package echoweb

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/payment"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/services/apiclient"
	"github.com/trezcool/masomo-admin/services/notifier"
	"github.com/trezcool/masomo-admin/services/tokenstore"
	"github.com/trezcool/masomo-admin/tests"
)

type testApp struct {
	*Server
	api    *testutil.SchoolAPI
	toasts *notifier.Broadcaster
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	api := testutil.NewSchoolAPI(t)
	conf := testutil.Config(api.BaseURL())
	translator := core.NewTranslator()
	reg := prometheus.NewRegistry()
	toasts := notifier.NewBroadcaster(4)

	srv, err := NewServer("", make(chan os.Signal, 1), &Deps{
		Conf:           conf,
		Logger:         core.NopLogger,
		API:            apiclient.New(apiclient.Options{BaseURL: conf.API.BaseURL, Registerer: reg}),
		Cookies:        tokenstore.NewCookieCodec(conf.SecretKey, conf.Session.RememberFor, false, nil),
		Students:       state.NewStudents(),
		Ledger:         payment.NewLedger(payment.Seed(time.Now())...),
		Toasts:         toasts,
		Validate:       core.NewValidator(translator),
		Translator:     translator,
		NotifierTokens: tokenstore.NewMemory(),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DisableReqLogs: true,
	})
	require.NoError(t, err)
	return &testApp{Server: srv, api: api, toasts: toasts}
}

// browser keeps cookies between requests the way a browser does.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range b.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.cookies, ck.Name)
		} else {
			b.cookies[ck.Name] = ck
		}
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder { return b.do(http.MethodGet, path, nil) }

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, path, form)
}

// restart closes & reopens the browser: session cookies are dropped, persistent ones kept.
func (b *browser) restart() {
	for name, ck := range b.cookies {
		if ck.MaxAge == 0 && ck.Expires.IsZero() {
			delete(b.cookies, name)
		}
	}
}

func (b *browser) login(remember bool) *httptest.ResponseRecorder {
	return b.post("/login", adminForm(remember))
}

func adminForm(remember bool) url.Values {
	form := url.Values{"username": {testutil.AdminUsername}, "password": {testutil.AdminPassword}}
	if remember {
		form.Set("rememberMe", "true")
	}
	return form
}

type httpTest struct {
	name         string
	method       string
	path         string
	form         url.Values
	wantCode     int
	wantLocation string
	wantBody     []string
	notBody      []string
}

func checkResponse(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantLocation != "" {
		if loc := rec.Header().Get("Location"); loc != tt.wantLocation {
			t.Errorf("failed! location = %q; wantLocation %q", loc, tt.wantLocation)
		}
	}
	body := rec.Body.String()
	for _, want := range tt.wantBody {
		if !strings.Contains(body, want) {
			t.Errorf("failed! body does not contain %q:\n%s", want, body)
		}
	}
	for _, not := range tt.notBody {
		if strings.Contains(body, not) {
			t.Errorf("failed! body contains %q:\n%s", not, body)
		}
	}
}

func runHTTPTests(t *testing.T, b *browser, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkResponse(t, tt, b.do(method, tt.path, tt.form))
		})
	}
}
