package handlers

import (
	"embed"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"path"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"

	"tourprism/internal/models"
	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
	"tourprism/pkg/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutName = "layout.html"

// pageRender 每个页面是 layout 的一个克隆，页面只定义 title / content / scripts
type pageRender struct {
	pages map[string]*template.Template
}

func newPageRender(funcs template.FuncMap) (*pageRender, error) {
	base, err := template.New(layoutName).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutName)
	if err != nil {
		return nil, err
	}
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	p := &pageRender{pages: make(map[string]*template.Template, len(entries))}
	for _, e := range entries {
		if e.Name() == layoutName {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, path.Join("templates", e.Name())); err != nil {
			return nil, err
		}
		p.pages[e.Name()] = t
	}
	return p, nil
}

// Instance implements render.HTMLRender.
func (p *pageRender) Instance(name string, data any) render.Render {
	t, ok := p.pages[name]
	if !ok {
		logger.Error("unknown page template", zap.String("name", name))
		t = p.pages["not_found.html"]
	}
	return render.HTML{Template: t, Name: layoutName, Data: data}
}

// page is the root of every template.
type page struct {
	Lang          string
	Path          string
	Authenticated bool
	User          *models.User
	Unread        int
	Flashes       []string
	Notices       []notice
	Data          interface{}
	T             func(key string, kv ...interface{}) string
}

type notice struct {
	Level string
	Text  string
}

func (h *Handlers) render(c *gin.Context, status int, name string, data interface{}, notices ...notice) {
	v := h.view(c)
	lang := middleware.Lang(c)
	s := v.sess.Current(c.Request.Context())
	p := page{
		Lang:          lang,
		Path:          c.Request.URL.Path,
		Authenticated: s.Authenticated(),
		User:          s.User,
		Flashes:       h.takeFlashes(c),
		Notices:       notices,
		Data:          data,
		T: func(key string, kv ...interface{}) string {
			return h.i18n.T(lang, key, pairs(kv))
		},
	}
	if p.Authenticated {
		p.Unread = v.panel.UnreadCount()
	}
	c.HTML(status, name, p)
}

// tr translates key for the request's language.
func (h *Handlers) tr(c *gin.Context, key string, data map[string]interface{}) string {
	return h.i18n.T(middleware.Lang(c), key, data)
}

func pairs(kv []interface{}) map[string]interface{} {
	if len(kv) < 2 {
		return nil
	}
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}

// flash 保存一条跨重定向的提示（消息 id）
func (h *Handlers) flash(c *gin.Context, msgID string) {
	s := sessions.Default(c)
	s.AddFlash(msgID)
	if err := s.Save(); err != nil {
		logger.Warn("save flash failed", zap.Error(err))
	}
}

func (h *Handlers) takeFlashes(c *gin.Context) []string {
	s := sessions.Default(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(); err != nil {
		logger.Warn("save session failed", zap.Error(err))
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if id, ok := f.(string); ok {
			out = append(out, h.tr(c, id, nil))
		}
	}
	return out
}

// redirectToLogin sends the visitor to the login page, remembering where they were going.
func (h *Handlers) redirectToLogin(c *gin.Context, msgID, from string) {
	if msgID != "" {
		h.flash(c, msgID)
	}
	target := "/login"
	if from != "" {
		target += "?from=" + url.QueryEscape(from)
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// describe turns an error into a banner and per-field messages, both translated.
// data fills placeholders such as the cooldown seconds.
func (h *Handlers) describe(c *gin.Context, err error, data map[string]interface{}) (banner string, fields map[string]string) {
	if err == nil {
		return "", nil
	}
	msgID := errors.GetMsgID(err)
	if ids := errors.GetFields(err); len(ids) > 0 {
		fields = make(map[string]string, len(ids))
		for f, id := range ids {
			fields[f] = h.tr(c, id, data)
			if id == msgID {
				msgID = ""
			}
		}
		if msgID == "" {
			return "", fields
		}
	}
	switch {
	case msgID != "":
		return h.tr(c, msgID, data), fields
	case errors.IsKind(err, errors.KindRejected) && errors.GetMessage(err) != "":
		return errors.GetMessage(err), fields
	default:
		return h.tr(c, "error.generic", nil), fields
	}
}

// statusFor picks the status of a page re-rendered after err.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsKind(err, errors.KindValidation):
		return http.StatusUnprocessableEntity
	case errors.IsKind(err, errors.KindNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func has(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func round(f *float64) int {
	if f == nil {
		return 0
	}
	return int(math.Round(*f))
}
