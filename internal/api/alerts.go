package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tourprism/internal/models"
	"tourprism/pkg/errors"
)

// AlertQuery 列表查询参数；坐标优先于城市
type AlertQuery struct {
	City          string
	Coords        *models.Coords
	DistanceKm    int
	StartDate     time.Time
	EndDate       time.Time
	IncidentTypes []string
	SortBy        models.SortBy
	Page          int
	Limit         int
}

func (q AlertQuery) Values() url.Values {
	v := url.Values{}
	if q.Coords != nil {
		v.Set("latitude", strconv.FormatFloat(q.Coords.Latitude, 'f', -1, 64))
		v.Set("longitude", strconv.FormatFloat(q.Coords.Longitude, 'f', -1, 64))
	} else if q.City != "" {
		v.Set("city", q.City)
	}
	if q.DistanceKm > 0 {
		v.Set("distance", strconv.Itoa(q.DistanceKm))
	}
	if !q.StartDate.IsZero() {
		v.Set("startDate", q.StartDate.UTC().Format(time.RFC3339))
	}
	if !q.EndDate.IsZero() {
		v.Set("endDate", q.EndDate.UTC().Format(time.RFC3339))
	}
	for _, t := range q.IncidentTypes {
		v.Add("incidentTypes[]", t)
	}
	if q.SortBy != "" {
		v.Set("sortBy", string(q.SortBy))
		v.Set("sortOrder", q.SortBy.SortOrder())
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// ListAlerts fetches one page. The backend may answer with a bare array or an envelope.
func (c *Client) ListAlerts(ctx context.Context, q AlertQuery) (*models.AlertPage, error) {
	var raw []byte
	if err := c.getJSON(ctx, "GET /api/alerts", "/api/alerts", q.Values(), &raw); err != nil {
		return nil, err
	}
	page, err := decodeAlertPage(raw)
	if err != nil {
		return nil, errors.Wrap(errors.KindRejected, err, "decode alerts").WithMsgID("error.generic")
	}
	return page, nil
}

func decodeAlertPage(raw []byte) (*models.AlertPage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &models.AlertPage{}, nil
	}
	if raw[0] == '[' {
		var list []models.Alert
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return &models.AlertPage{Alerts: list, TotalCount: len(list)}, nil
	}
	var env struct {
		Alerts      []models.Alert `json:"alerts"`
		CurrentPage int            `json:"currentPage"`
		TotalPages  int            `json:"totalPages"`
		TotalCount  int            `json:"totalCount"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &models.AlertPage{
		Alerts:      env.Alerts,
		CurrentPage: env.CurrentPage,
		TotalPages:  env.TotalPages,
		TotalCount:  env.TotalCount,
		Envelope:    true,
	}, nil
}

func (c *Client) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "GET /api/alerts/:id", pathf("/api/alerts/%s", id), nil, &raw); err != nil {
		return nil, err
	}
	// some deployments wrap the record as {alert: {...}}
	var wrapped struct {
		Alert *models.Alert `json:"alert"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Alert != nil {
		return wrapped.Alert, nil
	}
	var a models.Alert
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrap(errors.KindRejected, err, "decode alert").WithMsgID("error.generic")
	}
	return &a, nil
}

func (c *Client) MyAlerts(ctx context.Context) ([]models.Alert, error) {
	var raw []byte
	if err := c.getJSON(ctx, "GET /api/alerts/user/my-alerts", "/api/alerts/user/my-alerts", nil, &raw); err != nil {
		return nil, err
	}
	page, err := decodeAlertPage(raw)
	if err != nil {
		return nil, errors.Wrap(errors.KindRejected, err, "decode alerts").WithMsgID("error.generic")
	}
	return page.Alerts, nil
}

func (c *Client) LikeAlert(ctx context.Context, id string) (*models.ActionResponse, error) {
	return c.alertAction(ctx, "like", id)
}

func (c *Client) ShareAlert(ctx context.Context, id string) (*models.ActionResponse, error) {
	return c.alertAction(ctx, "share", id)
}

func (c *Client) FlagAlert(ctx context.Context, id string) (*models.ActionResponse, error) {
	return c.alertAction(ctx, "flag", id)
}

func (c *Client) alertAction(ctx context.Context, action, id string) (*models.ActionResponse, error) {
	var out models.ActionResponse
	route := "POST /api/alerts/:id/" + action
	if err := c.sendJSON(ctx, http.MethodPost, route, pathf("/api/alerts/%s/"+action, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload is one attached file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewAlert is the multipart submission body.
type NewAlert struct {
	IncidentType string
	OtherType    string
	Location     string
	Latitude     float64
	Longitude    float64
	City         string
	Description  string
	Media        []Upload
}

func (c *Client) CreateAlert(ctx context.Context, a NewAlert) (*models.Alert, error) {
	body, contentType, err := a.encode()
	if err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "encode alert")
	}
	var raw json.RawMessage
	req := request{
		method:      http.MethodPost,
		route:       "POST /api/alerts/create",
		path:        "/api/alerts/create",
		body:        body,
		contentType: contentType,
	}
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		Alert *models.Alert `json:"alert"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &wrapped) == nil && wrapped.Alert != nil {
		return wrapped.Alert, nil
	}
	var out models.Alert
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return &out, nil
}

func (a NewAlert) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{{"incidentType", a.IncidentType}}
	if a.IncidentType == models.IncidentOther {
		fields = append(fields, [2]string{"otherType", a.OtherType})
	}
	fields = append(fields,
		[2]string{"location", a.Location},
		[2]string{"latitude", strconv.FormatFloat(a.Latitude, 'f', -1, 64)},
		[2]string{"longitude", strconv.FormatFloat(a.Longitude, 'f', -1, 64)},
		[2]string{"city", a.City},
		[2]string{"description", a.Description},
	)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, m := range a.Media {
		if err := writeFile(w, "media", m); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, u Upload) error {
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + escapeQuotes(u.Filename) + `"`}
	ct := u.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h["Content-Type"] = []string{ct}
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(u.Data)
	return err
}

func escapeQuotes(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
