package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/bulk"
	"tourprism/pkg/logger"
)

type bulkPage struct {
	Result *api.BulkResult
	Error  string
	Errors map[string]string
}

func (h *Handlers) handleBulkPage(c *gin.Context) {
	h.render(c, http.StatusOK, "bulk.html", bulkPage{})
}

// handleBulkUpload 只接受 CSV，结果逐行展示
func (h *Handlers) handleBulkUpload(c *gin.Context) {
	v := h.view(c)
	var file *bulk.File
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err == nil {
			data, rerr := io.ReadAll(f)
			f.Close()
			if rerr == nil {
				file = &bulk.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}
			}
		}
	}

	res, err := bulk.NewUploader(v.client).Upload(c.Request.Context(), file)
	if err != nil {
		if api.SessionRejected(err) {
			h.redirectToLogin(c, "error.session_expired", "/bulk-alerts")
			return
		}
		p := bulkPage{}
		p.Error, p.Errors = h.describe(c, err, nil)
		h.render(c, statusFor(err), "bulk.html", p)
		return
	}
	h.render(c, http.StatusOK, "bulk.html", bulkPage{Result: res})
}

func (h *Handlers) handleBulkTemplate(c *gin.Context) {
	v := h.view(c)
	b, err := bulk.NewUploader(v.client).Template(c.Request.Context())
	if err != nil {
		logger.Warn("bulk template download failed", zap.Error(err))
		if api.SessionRejected(err) {
			h.redirectToLogin(c, "error.session_expired", "/bulk-alerts")
			return
		}
		h.flash(c, "bulk.template_failed")
		c.Redirect(http.StatusSeeOther, "/bulk-alerts")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+bulk.TemplateFilename+`"`)
	c.Data(http.StatusOK, "text/csv", b)
}
