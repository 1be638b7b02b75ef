package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/pkg/i18n"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "2-M", SkipPaths: []string{"/static/"}}, nil)
	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/static/app.css", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestLanguageMiddleware(t *testing.T) {
	s, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	r := gin.New()
	r.Use(LanguageMiddleware(s))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, Lang(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "fr", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?lang=xx", nil))
	assert.Equal(t, "en", w.Body.String())
}

func TestIdempotency(t *testing.T) {
	r := gin.New()
	r.POST("/post-alert", IdempotencyMiddleware(IdempotencyConfig{}), func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(token string) int {
		form := url.Values{IdempotencyField: {token}}
		req := httptest.NewRequest(http.MethodPost, "/post-alert", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusCreated, send("abc"))
	assert.Equal(t, http.StatusConflict, send("abc"))
	assert.Equal(t, http.StatusCreated, send("def"))
	assert.Equal(t, http.StatusCreated, send(""))
	assert.Equal(t, http.StatusCreated, send(""))
}

func TestAccessLogSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(AccessLogMiddleware(nil))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}
