package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/models"
	"tourprism/internal/postalert"
	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
	"tourprism/pkg/response"
)

// maxUploadMemory caps multipart parsing in memory; larger parts spill to disk.
const maxUploadMemory = 32 << 20

type postAlertPage struct {
	Form           postalert.Form
	Submitted      bool
	Created        *models.Alert
	Types          []string
	PlacesEnabled  bool
	IdemKey        string
	MaxOther       int
	MaxDescription int
	MaxMedia       int
	Error          string
	Errors         map[string]string
}

func (h *Handlers) renderPostAlert(c *gin.Context, v *view, err error) {
	submitted, created := v.post.Submitted()
	p := postAlertPage{
		Form:           v.post.Form(),
		Submitted:      submitted,
		Created:        created,
		Types:          models.PostIncidentTypes,
		PlacesEnabled:  h.places.Enabled(),
		IdemKey:        uuid.NewString(),
		MaxOther:       postalert.MaxOtherType,
		MaxDescription: postalert.MaxDescription,
		MaxMedia:       postalert.MaxMedia,
	}
	p.Error, p.Errors = h.describe(c, err, nil)
	h.render(c, statusFor(err), "post_alert.html", p)
}

// handlePostAlertPage 打开表单时检查会话
func (h *Handlers) handlePostAlertPage(c *gin.Context) {
	v := h.view(c)
	if err := v.post.Mount(c.Request.Context()); err != nil {
		h.redirectToLogin(c, "guard.login_to_post", postalert.Path)
		return
	}
	h.renderPostAlert(c, v, nil)
}

func (h *Handlers) handlePostAlert(c *gin.Context) {
	v := h.view(c)
	ctx := c.Request.Context()
	if err := v.post.Mount(ctx); err != nil {
		h.redirectToLogin(c, "guard.login_to_post", postalert.Path)
		return
	}

	uploads, err := readUploads(c, "media")
	if err != nil {
		logger.Warn("read alert media failed", zap.Error(err))
		h.renderPostAlert(c, v, errors.Wrap(errors.KindValidation, err, "").WithMsgID("alert.submit_failed"))
		return
	}
	err = v.post.Update(func(f *postalert.Form) error {
		f.SetIncidentType(c.PostForm("incidentType"))
		f.SetOtherType(c.PostForm("otherType"))
		f.SetDescription(c.PostForm("description"))
		f.SetLocationText(c.PostForm("location"))
		if len(uploads) > 0 {
			return f.AddMedia(uploads...)
		}
		return nil
	})
	if err != nil {
		h.renderPostAlert(c, v, err)
		return
	}
	if placeID := c.PostForm("placeId"); placeID != "" {
		if err := v.post.PickPlace(ctx, placeID); err != nil {
			h.renderPostAlert(c, v, err)
			return
		}
	}

	err = v.post.Submit(ctx)
	if stderrors.Is(err, postalert.ErrLoginRequired) {
		h.redirectToLogin(c, "guard.login_to_post", postalert.Path)
		return
	}
	if err != nil {
		h.renderPostAlert(c, v, err)
		return
	}
	c.Redirect(http.StatusSeeOther, postalert.Path)
}

func (h *Handlers) handleRemoveMedia(c *gin.Context) {
	v := h.view(c)
	i, err := strconv.Atoi(c.Param("index"))
	if err == nil {
		_ = v.post.Update(func(f *postalert.Form) error {
			f.RemoveMedia(i)
			return nil
		})
	}
	c.Redirect(http.StatusSeeOther, postalert.Path)
}

func (h *Handlers) handlePostAnother(c *gin.Context) {
	h.view(c).post.PostAnother()
	c.Redirect(http.StatusSeeOther, postalert.Path)
}

// handlePlaces 地点自动补全；未配置 key 或没有输入时不带 data
func (h *Handlers) handlePlaces(c *gin.Context) {
	input := c.Query("input")
	if !h.places.Enabled() || input == "" {
		response.Success(c, "ok", nil)
		return
	}
	preds, err := h.places.Autocomplete(c.Request.Context(), input)
	if err != nil {
		logger.Warn("place autocomplete failed", zap.Error(err))
		response.Result(c, http.StatusBadGateway, h.tr(c, "error.network", nil), nil)
		return
	}
	response.Success(c, "ok", preds)
}

func readUploads(c *gin.Context, field string) ([]api.Upload, error) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		if stderrors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	var out []api.Upload
	for _, fh := range c.Request.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		out = append(out, api.Upload{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data})
	}
	return out, nil
}
