package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"

	"tourprism/pkg/errors"
)

// BulkRowError 单行校验失败
type BulkRowError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

// BulkResult is what the backend reports after an upload.
type BulkResult struct {
	Message      string         `json:"message,omitempty"`
	SuccessCount int            `json:"successCount"`
	ErrorCount   int            `json:"errorCount"`
	Errors       []BulkRowError `json:"errors,omitempty"`
}

// UploadBulkAlerts posts a CSV as multipart field "file".
func (c *Client) UploadBulkAlerts(ctx context.Context, filename string, data []byte) (*BulkResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeFile(w, "file", Upload{Filename: filename, ContentType: "text/csv", Data: data}); err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "encode upload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "encode upload")
	}
	var out BulkResult
	req := request{
		method:      http.MethodPost,
		route:       "POST /api/bulk-alerts/upload",
		path:        "/api/bulk-alerts/upload",
		body:        &buf,
		contentType: w.FormDataContentType(),
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BulkTemplate returns the CSV template bytes.
func (c *Client) BulkTemplate(ctx context.Context) ([]byte, error) {
	var raw []byte
	req := request{method: http.MethodGet, route: "GET /api/bulk-alerts/template", path: "/api/bulk-alerts/template"}
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
