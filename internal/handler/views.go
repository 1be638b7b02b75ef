package handlers

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/feed"
	"tourprism/internal/forms"
	"tourprism/internal/geo"
	"tourprism/internal/models"
	"tourprism/internal/notifications"
	"tourprism/internal/postalert"
	"tourprism/internal/session"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
	"tourprism/pkg/storage"
)

const (
	cookieName = "tourprism"
	deviceKey  = "device"
	viewKey    = "view"
)

// view 一个设备的全部视图状态，相当于浏览器里一个打开的应用
type view struct {
	device  string
	sess    *session.Provider
	client  *api.Client
	feed    *feed.Controller
	post    *postalert.Controller
	panel   *notifications.Panel
	browser *geo.Browser

	feedLoaded atomic.Bool
	locating   atomic.Bool

	// mu guards the form flows and the countdown.
	mu        sync.Mutex
	login     *forms.LoginFlow
	signup    *forms.SignUpFlow
	forgot    *forms.ForgotPasswordFlow
	countdown func()

	unsubscribe func()
}

// view returns the caller's view, creating the device id and the view on first use.
func (h *Handlers) view(c *gin.Context) *view {
	if v, ok := c.Get(viewKey); ok {
		return v.(*view)
	}
	device := h.deviceID(c)
	v, ok := h.views.Get(device)
	if !ok {
		fresh := h.newView(c.Request.Context(), device)
		prev, found, _ := h.views.PeekOrAdd(device, fresh)
		if found {
			fresh.teardown()
			v = prev
		} else {
			v = fresh
		}
		metrics.Observe(func(m *metrics.Metrics) { m.SetActiveViews(h.views.Len()) })
	}
	c.Set(viewKey, v)
	return v
}

func (h *Handlers) deviceID(c *gin.Context) string {
	s := sessions.Default(c)
	if id, ok := s.Get(deviceKey).(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	s.Set(deviceKey, id)
	if err := s.Save(); err != nil {
		logger.Warn("save device cookie failed", zap.Error(err))
	}
	return id
}

func (h *Handlers) newView(ctx context.Context, device string) *view {
	v := &view{device: device}
	v.sess = session.NewProvider(storage.NewDevice(h.store, device))
	v.client = h.client.WithSession(v.sess, func(ctx context.Context) {
		logger.Info("session rejected by backend", zap.String("device", device))
		if err := v.sess.Clear(ctx); err != nil {
			logger.Warn("clear session failed", zap.String("device", device), zap.Error(err))
		}
	})

	v.browser = geo.NewBrowser(func(req geo.Request) error {
		h.hub.SendToDevice(device, "geolocate", map[string]interface{}{
			"enableHighAccuracy": req.HighAccuracy,
			"timeout":            req.Timeout.Milliseconds(),
			"maximumAge":         req.MaximumAge.Milliseconds(),
		})
		return nil
	})

	v.feed = feed.NewController(ctx, v.client, v.sess, feed.Options{
		DefaultCity:   h.cfg.DefaultCity,
		DefaultCenter: models.Coords{Latitude: h.cfg.DefaultCenterLat, Longitude: h.cfg.DefaultCenterLon},
		PageSize:      h.cfg.FeedPageSize,
		ShareBaseURL:  h.cfg.PublicURL,
		Now:           h.now,
	}, feed.WithGeocoder(h.geocoder), feed.WithSharer(feed.SharerFunc(browserShare)))

	var places postalert.PlaceResolver
	if h.places.Enabled() {
		places = h.places
	}
	v.post = postalert.NewController(v.client, places, v.sess)

	v.panel = notifications.NewPanel(v.client, h.cron, h.cfg.NotificationRefresh, func(unread int) {
		h.hub.SendToDevice(device, "notifications", map[string]int{"unread": unread})
	})

	// 会话被清除（登出或 401）时停止轮询并通知页面
	v.unsubscribe = v.sess.Subscribe(func(s models.Session) {
		if s.Authenticated() {
			return
		}
		v.panel.Close()
		v.feedLoaded.Store(false)
		h.hub.SendToDevice(device, "session", map[string]bool{"authenticated": false})
	})
	return v
}

// watchCountdown pushes the resend countdown to the device; callers hold v.mu.
func (h *Handlers) watchCountdown(v *view, c *forms.Cooldown) {
	v.stopCountdownLocked()
	if !c.Active() || !h.hub.Connected(v.device) {
		return
	}
	v.countdown = c.Watch(h.sched, func(seconds int) {
		h.hub.SendToDevice(v.device, "countdown", map[string]int{"seconds": seconds})
	})
}

func (v *view) stopCountdownLocked() {
	if v.countdown != nil {
		v.countdown()
		v.countdown = nil
	}
}

// pause stops background work while no page of the device is open.
func (v *view) pause() {
	v.panel.Close()
	v.mu.Lock()
	v.stopCountdownLocked()
	v.mu.Unlock()
}

func (v *view) teardown() {
	v.pause()
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}
