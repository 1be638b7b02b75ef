package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/internal/models"
	"tourprism/pkg/errors"
)

type staticToken string

func (s staticToken) Token(context.Context) string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestBearerHeaderAttachedWhenTokenPresent(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})

	_, err := c.WithSession(staticToken("abc"), nil).ListAlerts(context.Background(), AlertQuery{})
	require.NoError(t, err)
	_, err = c.WithSession(staticToken(""), nil).ListAlerts(context.Background(), AlertQuery{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer abc", ""}, got)
}

func TestUnauthorizedRunsHook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid token"}`))
	})
	calls := 0
	sc := c.WithSession(staticToken("old"), func(context.Context) { calls++ })

	_, err := sc.Notifications(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))
	assert.Equal(t, "error.session_expired", errors.GetMsgID(err))
	assert.True(t, SessionRejected(err))

	_, err = sc.LikeAlert(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestAnonymousUnauthorizedIsRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	})
	called := false
	_, err := c.WithSession(staticToken(""), func(context.Context) { called = true }).
		Login(context.Background(), Credentials{Email: "a@b.co", Password: "Secret1"})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.IsKind(err, errors.KindRejected))
	assert.Equal(t, "error.invalid_credentials", errors.GetMsgID(err))
}

func TestRejectedMessageMapping(t *testing.T) {
	msg := "User not found"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": msg})
	})

	_, err := c.Login(context.Background(), Credentials{Email: "a@b.co", Password: "x"})
	require.Error(t, err)
	id, raw := Describe(err, "error.login_failed")
	assert.Equal(t, "error.user_not_found", id)
	assert.Empty(t, raw)
	assert.Equal(t, http.StatusBadRequest, errors.GetCode(err))

	msg = "Something odd happened"
	_, err = c.Login(context.Background(), Credentials{})
	id, raw = Describe(err, "error.login_failed")
	assert.Empty(t, id)
	assert.Equal(t, "Something odd happened", raw)

	msg = ""
	_, err = c.Login(context.Background(), Credentials{})
	id, _ = Describe(err, "error.login_failed")
	assert.Equal(t, "error.login_failed", id)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL)

	_, err := c.Notifications(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	id, _ := Describe(err, "error.generic")
	assert.Equal(t, "error.network", id)
}

func TestListAlertsQueryAndBareArray(t *testing.T) {
	var q map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		w.Write([]byte(`[{"id":"x1","incidentType":"Scam"},{"_id":"x2","incidentType":"Theft"}]`))
	})

	page, err := c.ListAlerts(context.Background(), AlertQuery{
		City:          "Edinburgh",
		Coords:        &models.Coords{Latitude: 55.9, Longitude: -3.2},
		DistanceKm:    10,
		IncidentTypes: []string{"Scam", "Theft"},
		SortBy:        models.SortOldest,
		Page:          2,
		Limit:         20,
	})
	require.NoError(t, err)

	assert.False(t, page.Envelope)
	require.Len(t, page.Alerts, 2)
	assert.Equal(t, "x1", page.Alerts[0].ID)
	assert.Equal(t, "x2", page.Alerts[1].ID)

	assert.Empty(t, q["city"], "coordinates take precedence over the city")
	assert.Equal(t, []string{"55.9"}, q["latitude"])
	assert.Equal(t, []string{"Scam", "Theft"}, q["incidentTypes[]"])
	assert.Equal(t, []string{"asc"}, q["sortOrder"])
	assert.Equal(t, []string{"2"}, q["page"])
	assert.Equal(t, []string{"10"}, q["distance"])
}

func TestListAlertsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Glasgow", r.URL.Query().Get("city"))
		w.Write([]byte(`{"alerts":[{"_id":"a"}],"currentPage":1,"totalPages":3,"totalCount":41}`))
	})

	page, err := c.ListAlerts(context.Background(), AlertQuery{City: "Glasgow"})
	require.NoError(t, err)
	assert.True(t, page.Envelope)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 41, page.TotalCount)
	require.Len(t, page.Alerts, 1)
}

func TestCreateAlertMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Other", r.FormValue("incidentType"))
		assert.Equal(t, "Pickpocket ring", r.FormValue("otherType"))
		assert.Equal(t, "55.95", r.FormValue("latitude"))
		files := r.MultipartForm.File["media"]
		require.Len(t, files, 1)
		f, _ := files[0].Open()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "img", string(b))
		w.Write([]byte(`{"alert":{"_id":"new1","status":"pending"}}`))
	})

	a, err := c.CreateAlert(context.Background(), NewAlert{
		IncidentType: "Other",
		OtherType:    "Pickpocket ring",
		Location:     "Royal Mile",
		Latitude:     55.95,
		Longitude:    -3.19,
		City:         "Edinburgh",
		Description:  "Watch your bags",
		Media:        []Upload{{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("img")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new1", a.ID)
}

func TestNotificationsShapes(t *testing.T) {
	body := `[{"_id":"n1","isRead":false}]`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
	list, err := c.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	body = `{"notifications":[{"id":"n2","isRead":true},{"id":"n3"}]}`
	list, err = c.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)
}

func TestBulkUploadAndTemplate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/bulk-alerts/template":
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte("incidentType,location\n"))
		case "/api/bulk-alerts/upload":
			f, h, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, "alerts.csv", h.Filename)
			w.Write([]byte(`{"successCount":2,"errorCount":1,"errors":[{"row":3,"errors":["location is required"]}]}`))
		}
	})

	tpl, err := c.BulkTemplate(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(tpl), "incidentType"))

	res, err := c.UploadBulkAlerts(context.Background(), "alerts.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)
}
