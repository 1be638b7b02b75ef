package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/internal/api"
	"tourprism/pkg/config"
	"tourprism/pkg/i18n"
	"tourprism/pkg/response"
	"tourprism/pkg/storage"
)

func init() { gin.SetMode(gin.TestMode) }

const alertsJSON = `{"alerts":[{"_id":"a1","incidentType":"Scam","description":"Fake taxi drivers at the station","location":"Waverley Station","city":"Edinburgh","createdAt":"2026-10-15T09:00:00Z","likes":3}],"currentPage":1,"totalPages":1,"totalCount":1}`

// fakeBackend answers the handful of backend routes the pages touch.
type fakeBackend struct {
	logins atomic.Int32
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		b.logins.Add(1)
		var cred api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&cred)
		if cred.Password != "Secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		io.WriteString(w, `{"token":"tok-1","user":{"_id":"u1","email":"`+cred.Email+`"}}`)
	case r.URL.Path == "/auth/user/profile":
		if r.Header.Get("Authorization") != "Bearer tok-google" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"message":"Invalid token"}`)
			return
		}
		io.WriteString(w, `{"_id":"u2","email":"g@example.com"}`)
	case r.URL.Path == "/api/alerts":
		io.WriteString(w, alertsJSON)
	case r.URL.Path == "/api/alerts/missing":
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Alert not found"}`)
	case r.URL.Path == "/api/notifications":
		io.WriteString(w, `[]`)
	case r.URL.Path == "/api/bulk-alerts/template":
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, "incidentType,description,location\n")
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"not found"}`)
	}
}

type testApp struct {
	srv     *httptest.Server
	backend *fakeBackend
	client  *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	backend := &fakeBackend{}
	bsrv := httptest.NewServer(backend)
	t.Cleanup(bsrv.Close)

	tr, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	cfg := &config.Config{
		BackendURL:    bsrv.URL,
		PublicURL:     "http://tourprism.test",
		SessionSecret: "test-secret",
		DefaultCity:   "Edinburgh",
		FeedPageSize:  20,
		OTPCooldown:   time.Minute,
		RateLimit:     "100-M",
	}
	h, err := NewHandlers(Options{
		Config: cfg,
		Client: api.New(bsrv.URL),
		Store:  storage.NewMemoryStore(time.Hour),
		I18n:   tr,
	})
	require.NoError(t, err)
	t.Cleanup(h.Close)

	engine := gin.New()
	h.Register(engine)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testApp{
		srv:     srv,
		backend: backend,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.srv.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.srv.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp, _ := a.post(t, "/login", url.Values{"email": {"jo@example.com"}, "password": {"Secret123"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGuardRedirectsToLoginWithReturnPath(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/feed")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?from=%2Ffeed", resp.Header.Get("Location"))

	_, body := app.get(t, "/login?from=%2Ffeed")
	assert.Contains(t, body, "You need to be logged in to access this page")
	assert.Contains(t, body, `name="from" value="/feed"`)
}

func TestLoginReturnsToRequestedPage(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.post(t, "/login", url.Values{
		"email":    {"jo@example.com"},
		"password": {"Secret123"},
		"from":     {"/my-alerts"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/my-alerts", resp.Header.Get("Location"))

	resp, _ = app.get(t, "/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/feed", resp.Header.Get("Location"))
}

func TestLoginValidationStaysOnPage(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.post(t, "/login", url.Values{"email": {"not-an-email"}, "password": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please enter a valid email address")
	assert.Contains(t, body, "Password is required")
	assert.Zero(t, app.backend.logins.Load())
}

func TestLoginRejectedByBackend(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.post(t, "/login", url.Values{"email": {"jo@example.com"}, "password": {"Wrong1"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "notice-error")
	assert.EqualValues(t, 1, app.backend.logins.Load())
}

func TestFeedRendersAlerts(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp, body := app.get(t, "/feed")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Alerts in Edinburgh")
	assert.Contains(t, body, "Fake taxi drivers at the station")
	assert.Contains(t, body, `action="/feed/alerts/a1/like"`)
	assert.Contains(t, body, "http://tourprism.test/alerts/a1")
}

func TestFeedGeoJSON(t *testing.T) {
	app := newTestApp(t)
	app.login(t)
	app.get(t, "/feed")

	resp, body := app.get(t, "/feed/geojson")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "FeatureCollection")
}

func TestLocationReadingWithoutPendingRequest(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp, err := app.client.Post(app.srv.URL+"/feed/location/reading", "application/json",
		strings.NewReader(`{"latitude":55.95,"longitude":-3.19,"accuracy":20}`))
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var out response.Body
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, http.StatusConflict, out.Code)
}

func TestPostAlertRequiresLogin(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/post-alert")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?from=%2Fpost-alert", resp.Header.Get("Location"))

	_, body := app.get(t, "/login?from=%2Fpost-alert")
	assert.Contains(t, body, "Please login to post an alert")
}

func TestPostAlertFormValidation(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp, body := app.get(t, "/post-alert")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="idempotency_key"`)

	resp, body = app.post(t, "/post-alert", url.Values{"incidentType": {"Other"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please describe the incident type")
	assert.Contains(t, body, "Please enter a description")
}

func TestPlacesDisabledReturnsNothing(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/post-alert/places?input=Royal+Mile")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out response.Body
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Nil(t, out.Data)
}

func TestBulkTemplateDownload(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp, body := app.get(t, "/bulk-alerts/template")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="alert-template.csv"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(body, "incidentType,"))
}

func TestBulkUploadWithoutFile(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp, body := app.post(t, "/bulk-alerts", url.Values{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please choose a file to upload")
}

func TestAlertNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/alerts/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "404")
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "The page you are looking for does not exist.")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "healthy", out["status"])
}

func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp, _ := app.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = app.get(t, "/feed")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestGoogleCallback(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/auth/google/callback?token=tok-google")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/feed", resp.Header.Get("Location"))

	resp, _ = app.get(t, "/notifications")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGoogleCallbackFailureGoesBackToLogin(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/auth/google/callback?token=bogus")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = app.get(t, "/feed")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestGoogleLoginRedirectsToBackend(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/login/google")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasSuffix(resp.Header.Get("Location"), "/auth/google"))
}
