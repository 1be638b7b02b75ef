package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourprism/pkg/logger"
)

// healthNamespace is a storage namespace no device id can collide with.
const healthNamespace = "_health"

func (h *Handlers) handleHome(c *gin.Context) {
	h.render(c, http.StatusOK, "home.html", nil)
}

// handleNotFound 未匹配的路由
func (h *Handlers) handleNotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "not_found.html", nil)
}

// handleEvents 设备的 SSE 流：通知角标、定位请求、验证码倒计时、feed 刷新
func (h *Handlers) handleEvents(c *gin.Context) {
	v := h.view(c)
	h.hub.Serve(c, v.device, func() {
		if v.sess.Current(c.Request.Context()).Authenticated() {
			h.hub.SendToDevice(v.device, "notifications", map[string]int{"unread": v.panel.UnreadCount()})
		}
	})
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	// 检查设备存储读写
	ctx := c.Request.Context()
	stamp := strconv.FormatInt(h.now().UnixNano(), 10)
	if err := h.store.SetItem(ctx, healthNamespace, "ping", stamp); err != nil {
		logger.Error("health check write failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "storage write failed"})
		return
	}
	if got, ok, err := h.store.GetItem(ctx, healthNamespace, "ping"); err != nil || !ok || got != stamp {
		logger.Error("health check read failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "storage read failed"})
		return
	}

	// 返回健康状态
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"views":  h.views.Len(),
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}
