package feed

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/models"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
)

type Action string

const (
	ActionLike  Action = "like"
	ActionShare Action = "share"
	ActionFlag  Action = "flag"
)

// ActionResult is the typed outcome of like, share or flag.
type ActionResult struct {
	Action  Action
	AlertID string
	OK      bool
	// Alert is the entry after the backend's answer was applied.
	Alert *models.Alert
	Err   error
	// SharedNatively is true when the share sheet accepted the share.
	SharedNatively bool
}

// ActionFailurePolicy decides, in one place, what a failed action shows to the user.
type ActionFailurePolicy func(r ActionResult) *Notice

// ToastOnFailure logs the failure and raises a toast.
func ToastOnFailure(r ActionResult) *Notice {
	logger.Warn("alert action failed",
		zap.String("action", string(r.Action)), zap.String("alert", r.AlertID), zap.Error(r.Err))
	return &Notice{MsgID: "feed.action_failed." + string(r.Action), Level: LevelError}
}

// LogOnly logs and shows nothing.
func LogOnly(r ActionResult) *Notice {
	logger.Warn("alert action failed",
		zap.String("action", string(r.Action)), zap.String("alert", r.AlertID), zap.Error(r.Err))
	return nil
}

// ShareTarget is handed to the share sheet.
type ShareTarget struct {
	Title string
	Text  string
	URL   string
}

// ErrShareUnavailable is returned by sharers that cannot open a share sheet.
var ErrShareUnavailable = errors.New("share sheet unavailable")

type Sharer interface {
	Share(ctx context.Context, t ShareTarget) error
}

type SharerFunc func(ctx context.Context, t ShareTarget) error

func (f SharerFunc) Share(ctx context.Context, t ShareTarget) error { return f(ctx, t) }

func (c *Controller) Like(ctx context.Context, id string) ActionResult {
	return c.act(ctx, ActionLike, id, c.backend.LikeAlert, false)
}

func (c *Controller) Flag(ctx context.Context, id string) ActionResult {
	return c.act(ctx, ActionFlag, id, c.backend.FlagAlert, false)
}

// Share tries the share sheet first; its failure never stops the share being recorded.
func (c *Controller) Share(ctx context.Context, id string) ActionResult {
	native := false
	if c.sharer != nil {
		err := c.sharer.Share(ctx, c.shareTarget(id))
		switch {
		case err == nil:
			native = true
		case errors.Is(err, ErrShareUnavailable):
			logger.Debug("share sheet unavailable", zap.String("alert", id))
		default:
			logger.Info("share sheet failed", zap.String("alert", id), zap.Error(err))
		}
	}
	return c.act(ctx, ActionShare, id, c.backend.ShareAlert, native)
}

// ShareTarget builds what the share sheet shows for id.
func (c *Controller) ShareTarget(id string) ShareTarget { return c.shareTarget(id) }

func (c *Controller) shareTarget(id string) ShareTarget {
	t := ShareTarget{Title: "Travel alert", URL: strings.TrimRight(c.opts.ShareBaseURL, "/") + "/alerts/" + id}
	c.mu.Lock()
	defer c.mu.Unlock()
	if a := findAlert(c.fetched, id); a != nil {
		t.Title = a.DisplayType()
		if a.Location != "" {
			t.Title += " - " + a.Location
		}
		t.Text = a.Description
	}
	return t
}

func (c *Controller) act(ctx context.Context, action Action, id string,
	call func(context.Context, string) (*models.ActionResponse, error), native bool) ActionResult {

	r := ActionResult{Action: action, AlertID: id, SharedNatively: native}
	resp, err := call(ctx, id)
	metrics.Observe(func(m *metrics.Metrics) { m.RecordAlertAction(string(action), err == nil) })
	if err != nil {
		r.Err = err
		// a rejected session is already handled by the client interceptor
		if !api.SessionRejected(err) && c.policy != nil {
			if n := c.policy(r); n != nil {
				c.notify(*n)
			}
		}
		return r
	}

	userID := ""
	if u := c.sess.Current(ctx).User; u != nil {
		userID = u.ID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	r.OK = true
	if a := findAlert(c.fetched, id); a != nil {
		resp.Apply(a, userID)
		cp := *a
		r.Alert = &cp
	}
	if a := findAlert(c.visible, id); a != nil {
		resp.Apply(a, userID)
	}
	if action == ActionShare {
		c.notices = append(c.notices, Notice{MsgID: "feed.shared", Level: LevelInfo})
	}
	return r
}

func findAlert(list []models.Alert, id string) *models.Alert {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
