package handlers

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"

	"tourprism/internal/api"
	"tourprism/internal/feed"
	"tourprism/internal/geo"
	"tourprism/internal/postalert"
	"tourprism/pkg/config"
	"tourprism/pkg/i18n"
	"tourprism/pkg/metrics"
	"tourprism/pkg/middleware"
	"tourprism/pkg/scheduler"
	"tourprism/pkg/sse"
	"tourprism/pkg/storage"
)

// MaxViews bounds how many devices keep live view state; the least recent is torn down.
const MaxViews = 4096

// Options 构造 Handlers 所需的依赖，Geocoder / Places / GeoIP / Metrics 可为空
type Options struct {
	Config    *config.Config
	Client    *api.Client
	Store     storage.Store
	I18n      *i18n.I18nSupport
	Metrics   *metrics.Metrics
	GeoIP     *geoip2.Reader
	Places    *geo.Places
	Geocoder  feed.ReverseGeocoder
	Cron      *scheduler.Cron
	Scheduler *scheduler.Scheduler
	Hub       *sse.Hub
	Now       func() time.Time
}

type Handlers struct {
	cfg      *config.Config
	client   *api.Client
	store    storage.Store
	i18n     *i18n.I18nSupport
	metrics  *metrics.Metrics
	geoip    *geoip2.Reader
	places   *geo.Places
	geocoder feed.ReverseGeocoder
	cron     *scheduler.Cron
	sched    *scheduler.Scheduler
	hub      *sse.Hub
	limiter  *middleware.RateLimiter
	views    *lru.Cache[string, *view]
	pages    *pageRender
	now      func() time.Time
}

func NewHandlers(o Options) (*Handlers, error) {
	h := &Handlers{
		cfg:      o.Config,
		client:   o.Client,
		store:    o.Store,
		i18n:     o.I18n,
		metrics:  o.Metrics,
		geoip:    o.GeoIP,
		places:   o.Places,
		geocoder: o.Geocoder,
		cron:     o.Cron,
		sched:    o.Scheduler,
		hub:      o.Hub,
		now:      o.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.hub == nil {
		h.hub = sse.NewHub(0)
	}
	if h.sched == nil {
		h.sched = scheduler.New()
	}

	views, err := lru.NewWithEvict[string, *view](MaxViews, func(_ string, v *view) {
		v.teardown()
	})
	if err != nil {
		return nil, err
	}
	h.views = views

	// 最后一个 SSE 连接断开时停止该设备的轮询与倒计时
	h.hub.OnEmpty = func(device string) {
		if v, ok := h.views.Peek(device); ok {
			v.pause()
		}
	}

	h.pages, err = newPageRender(template.FuncMap{
		"has":   has,
		"round": round,
	})
	if err != nil {
		return nil, err
	}

	h.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       h.cfg.RateLimit,
		AddHeaders: true,
		Deny: func(c *gin.Context) {
			c.String(http.StatusTooManyRequests, h.tr(c, "error.rate_limited", nil))
		},
	}, nil)
	return h, nil
}

// Close tears down every live view.
func (h *Handlers) Close() {
	h.views.Purge()
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.HTMLRender = h.pages

	// SSE 与指标端点不压缩，否则事件会被缓冲
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/events", "/metrics"})))
	engine.Use(middleware.AccessLogMiddleware(h.geoip))
	if h.metrics != nil {
		engine.Use(metrics.MonitorMiddleware(h.metrics))
	}

	store := cookie.NewStore([]byte(h.cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(cookieName, store))
	engine.Use(middleware.LanguageMiddleware(h.i18n))

	engine.NoRoute(h.handleNotFound)

	r := engine.Group("")

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerAuthRoutes(r)
	h.registerFeedRoutes(r)
	h.registerAlertRoutes(r)
	h.registerPostAlertRoutes(r)
	h.registerNotificationRoutes(r)
	h.registerBulkRoutes(r)
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	r.GET("/", h.handleHome)

	r.GET("/health", h.HealthCheck)

	r.GET("/events", h.handleEvents)

	if h.metrics != nil {
		r.GET("/metrics", metrics.Handler(h.metrics))
	}
}

func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	r.GET("/login", h.redirectIfAuthenticated, h.handleLoginPage)
	r.GET("/signup", h.redirectIfAuthenticated, h.handleSignUpPage)
	r.GET("/forgot-password", h.handleForgotPage)

	// 只有提交接口限流
	auth := r.Group("", h.limiter.Middleware())
	{
		auth.POST("/login", h.handleLogin)

		auth.POST("/login/otp", h.handleLoginOTP)

		auth.POST("/login/resend", h.handleLoginResend)

		auth.POST("/signup", h.handleSignUp)

		auth.POST("/signup/otp", h.handleSignUpOTP)

		auth.POST("/signup/resend", h.handleSignUpResend)

		auth.POST("/forgot-password", h.handleForgot)

		auth.POST("/forgot-password/otp", h.handleForgotOTP)

		auth.POST("/forgot-password/reset", h.handleForgotReset)

		auth.POST("/forgot-password/resend", h.handleForgotResend)
	}

	// Google OAuth
	r.GET("/login/google", h.handleGoogleLogin)
	r.GET("/auth/google/callback", h.handleGoogleCallback)

	r.POST("/logout", h.handleLogout)
}

func (h *Handlers) registerFeedRoutes(r *gin.RouterGroup) {
	feedGroup := r.Group("/feed", h.requireSession)
	{
		feedGroup.GET("", h.handleFeed)

		feedGroup.GET("/geojson", h.handleFeedGeoJSON)

		feedGroup.POST("/filters", h.handleApplyFilters)

		feedGroup.POST("/filters/clear", h.handleClearFilters)

		feedGroup.POST("/more", h.handleShowMore)

		// location
		feedGroup.POST("/location/locate", h.handleLocate)

		feedGroup.POST("/location/reading", h.handleLocationReading)

		feedGroup.POST("/location/accept", h.handleAcceptLowAccuracy)

		feedGroup.POST("/location/reset", h.handleResetLocation)

		// actions
		feedGroup.POST("/alerts/:id/like", h.handleAlertAction(feed.ActionLike))

		feedGroup.POST("/alerts/:id/share", h.handleAlertAction(feed.ActionShare))

		feedGroup.POST("/alerts/:id/flag", h.handleAlertAction(feed.ActionFlag))
	}
}

func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	r.GET("/alerts/:id", h.handleAlert)

	r.GET("/my-alerts", h.requireSession, h.handleMyAlerts)
}

func (h *Handlers) registerPostAlertRoutes(r *gin.RouterGroup) {
	idem := middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{
		TTL: 10 * time.Minute,
		Duplicate: func(c *gin.Context) {
			c.Redirect(http.StatusSeeOther, postalert.Path)
		},
	})

	post := r.Group(postalert.Path)
	{
		post.GET("", h.handlePostAlertPage)

		post.POST("", idem, h.handlePostAlert)

		post.POST("/media/:index/remove", h.handleRemoveMedia)

		post.POST("/another", h.handlePostAnother)

		post.GET("/places", h.handlePlaces)
	}
}

func (h *Handlers) registerNotificationRoutes(r *gin.RouterGroup) {
	notificationGroup := r.Group("/notifications", h.requireSession)
	{
		notificationGroup.GET("", h.handleNotifications)

		notificationGroup.POST("/unread", h.handleUnreadOnly)

		notificationGroup.POST("/more", h.handleMoreNotifications)

		notificationGroup.POST("/read-all", h.handleMarkAllRead)

		notificationGroup.POST("/:id/read", h.handleMarkNotificationRead)

		notificationGroup.POST("/:id/delete", h.handleDeleteNotification)

		notificationGroup.POST("/close", h.handleCloseNotifications)
	}
}

func (h *Handlers) registerBulkRoutes(r *gin.RouterGroup) {
	bulkGroup := r.Group("/bulk-alerts", h.requireSession)
	{
		bulkGroup.GET("", h.handleBulkPage)

		bulkGroup.POST("", h.handleBulkUpload)

		bulkGroup.GET("/template", h.handleBulkTemplate)
	}
}
