package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tourprism/internal/api"
	"tourprism/internal/forms"
	"tourprism/internal/models"
	"tourprism/internal/notifications"
	"tourprism/pkg/util"
)

type notificationItem struct {
	models.Notification
	Ago string
}

type notificationsPage struct {
	notifications.View
	List []notificationItem
}

// handleNotifications 打开面板：首次打开时刷新并开始轮询
func (h *Handlers) handleNotifications(c *gin.Context) {
	v := h.view(c)
	ctx := c.Request.Context()
	var err error
	switch {
	case !v.panel.Polling():
		err = v.panel.Open(ctx)
	case c.Query("refresh") != "":
		err = v.panel.Refresh(ctx)
	}
	if err != nil && api.SessionRejected(err) {
		h.redirectToLogin(c, "error.session_expired", "/notifications")
		return
	}

	pv := v.panel.View()
	list := make([]notificationItem, 0, len(pv.Items))
	now := h.now()
	for _, n := range pv.Items {
		list = append(list, notificationItem{Notification: n, Ago: util.TimeAgo(n.CreatedAt, now)})
	}
	h.render(c, http.StatusOK, "notifications.html", notificationsPage{View: pv, List: list})
}

// panelAction runs a panel mutation and goes back to the panel.
func (h *Handlers) panelAction(c *gin.Context, fn func(ctx context.Context, v *view) error) {
	v := h.view(c)
	if err := fn(c.Request.Context(), v); err != nil && api.SessionRejected(err) {
		h.redirectToLogin(c, "error.session_expired", "/notifications")
		return
	}
	c.Redirect(http.StatusSeeOther, "/notifications")
}

func (h *Handlers) handleMarkNotificationRead(c *gin.Context) {
	h.panelAction(c, func(ctx context.Context, v *view) error { return v.panel.MarkRead(ctx, c.Param("id")) })
}

func (h *Handlers) handleDeleteNotification(c *gin.Context) {
	h.panelAction(c, func(ctx context.Context, v *view) error { return v.panel.Delete(ctx, c.Param("id")) })
}

func (h *Handlers) handleMarkAllRead(c *gin.Context) {
	h.panelAction(c, func(ctx context.Context, v *view) error { return v.panel.MarkAllRead(ctx) })
}

func (h *Handlers) handleUnreadOnly(c *gin.Context) {
	h.panelAction(c, func(_ context.Context, v *view) error {
		v.panel.SetUnreadOnly(c.PostForm("unread") != "")
		return nil
	})
}

func (h *Handlers) handleMoreNotifications(c *gin.Context) {
	h.panelAction(c, func(_ context.Context, v *view) error {
		v.panel.ShowMore()
		return nil
	})
}

// handleCloseNotifications stops polling and returns to where the panel was opened from.
func (h *Handlers) handleCloseNotifications(c *gin.Context) {
	h.view(c).panel.Close()
	back := forms.SafeReturnPath(c.PostForm("from"))
	if back == "" || back == "/notifications" {
		back = forms.DefaultLanding
	}
	c.Redirect(http.StatusSeeOther, back)
}
