package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
)

type alertsPage struct {
	Title string
	Cards []alertCard
	Empty bool
}

func (h *Handlers) userID(c *gin.Context, v *view) string {
	if u := v.sess.Current(c.Request.Context()).User; u != nil {
		return u.ID
	}
	return ""
}

// handleAlert 单条警报，后端 404 时显示 Not Found
func (h *Handlers) handleAlert(c *gin.Context) {
	v := h.view(c)
	a, err := v.client.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.GetCode(err) == http.StatusNotFound {
			h.handleNotFound(c)
			return
		}
		logger.Warn("load alert failed", zap.String("alert", c.Param("id")), zap.Error(err))
		msg, _ := h.describe(c, err, nil)
		h.render(c, statusFor(err), "alerts.html", alertsPage{Title: "Alert"}, notice{Level: "error", Text: msg})
		return
	}
	h.render(c, http.StatusOK, "alerts.html", alertsPage{
		Title: a.DisplayType(),
		Cards: []alertCard{h.card(v, *a, h.userID(c, v))},
	})
}

func (h *Handlers) handleMyAlerts(c *gin.Context) {
	v := h.view(c)
	list, err := v.client.MyAlerts(c.Request.Context())
	if err != nil {
		if api.SessionRejected(err) {
			h.redirectToLogin(c, "error.session_expired", "/my-alerts")
			return
		}
		logger.Warn("load my alerts failed", zap.Error(err))
		msg, _ := h.describe(c, err, nil)
		h.render(c, statusFor(err), "alerts.html", alertsPage{Title: "My alerts"}, notice{Level: "error", Text: msg})
		return
	}
	uid := h.userID(c, v)
	cards := make([]alertCard, 0, len(list))
	for _, a := range list {
		cards = append(cards, h.card(v, a, uid))
	}
	h.render(c, http.StatusOK, "alerts.html", alertsPage{Title: "My alerts", Cards: cards, Empty: len(cards) == 0})
}
