package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
)

// TokenSource yields the bearer token of the current session, "" when signed out.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Client 后端 HTTP 适配器。所有请求都经过 do，统一附加 token 与错误归一化
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
	metrics        *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// New creates a client without a session; use WithSession for authenticated calls.
// No timeout is set beyond what the caller's context carries.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithSession returns a copy bound to a session. onUnauthorized runs on every 401
// before the error is returned, whichever call triggered it.
func (c *Client) WithSession(tokens TokenSource, onUnauthorized func(ctx context.Context)) *Client {
	cp := *c
	cp.tokens = tokens
	cp.onUnauthorized = onUnauthorized
	return &cp
}

func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	method      string
	route       string // metrics label, e.g. "POST /api/alerts/:id/like"
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) getJSON(ctx context.Context, route, path string, query url.Values, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, route: route, path: path, query: query}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, route, path string, in, out interface{}) error {
	req := request{method: method, route: route, path: path}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(errors.KindUnknown, err, "encode request")
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return c.do(ctx, req, out)
}

// do performs the call. out may be nil, *[]byte for the raw body, or a JSON target.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	start := time.Now()
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return errors.Wrap(errors.KindUnknown, err, "build request")
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	authed := false
	if c.tokens != nil {
		if tok := c.tokens.Token(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
			authed = true
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r.route, "network", start)
		logger.Warn("backend unreachable", zap.String("route", r.route), zap.Error(err))
		return errors.Wrap(errors.KindNetwork, err, "backend unreachable").WithMsgID("error.network")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(r.route, "network", start)
		return errors.Wrap(errors.KindNetwork, err, "read response").WithMsgID("error.network")
	}

	// a 401 on an anonymous call (bad credentials) is an ordinary rejection
	if resp.StatusCode == http.StatusUnauthorized && authed {
		c.observe(r.route, "unauthorized", start)
		metrics.Observe(func(m *metrics.Metrics) { m.RecordUnauthorized() })
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		e := errors.New(errors.KindUnauthorized, backendMessage(body)).WithMsgID("error.session_expired")
		e.Code = resp.StatusCode
		return e
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(r.route, "rejected", start)
		msg := backendMessage(body)
		logger.Info("backend rejected request",
			zap.String("route", r.route), zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return errors.WithCode(resp.StatusCode, msg).WithMsgID(KnownMessageID(msg))
	}
	c.observe(r.route, "ok", start)

	switch v := out.(type) {
	case nil:
	case *[]byte:
		*v = body
	default:
		if len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrapf(errors.KindRejected, err, "decode %s", r.route).WithMsgID("error.generic")
		}
	}
	return nil
}

func (c *Client) observe(route, outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordBackendCall(route, outcome, time.Since(start))
	}
}

func backendMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

func escape(id string) string { return url.PathEscape(id) }

func pathf(format string, ids ...string) string {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = escape(id)
	}
	return fmt.Sprintf(format, args...)
}
