package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/feed"
	"tourprism/internal/geo"
	"tourprism/internal/models"
	"tourprism/pkg/logger"
	"tourprism/pkg/response"
	"tourprism/pkg/util"
)

// locateBudget covers both attempts plus the browser round trips.
const locateBudget = 2*(geo.DefaultTimeout+5*time.Second) + 10*time.Second

type option struct {
	Value int
	Label string
}

var (
	timeRanges = []option{{0, "Any time"}, {1, "Last 24 hours"}, {7, "Last 7 days"}, {30, "Last 30 days"}}
	distances  = []option{{0, "Any distance"}, {5, "5 km"}, {10, "10 km"}, {25, "25 km"}, {50, "50 km"}}
	sorts      = []models.SortBy{models.SortRelevant, models.SortReported, models.SortNewest, models.SortOldest}
)

// alertCard 列表中一条警报的展示数据
type alertCard struct {
	ID          string
	Type        string
	Location    string
	Description string
	Ago         string
	Likes       int
	Shares      int
	Liked       bool
	Flagged     bool
	Shared      bool
	Media       []models.Media
	Share       feed.ShareTarget
}

type feedPage struct {
	feed.View
	Cards         []alertCard
	DefaultCity   string
	Locating      bool
	IncidentTypes []string
	TimeRanges    []option
	Distances     []option
	Sorts         []models.SortBy
}

type filterForm struct {
	SortBy        string   `form:"sortBy"`
	IncidentTypes []string `form:"incidentTypes"`
	TimeRange     int      `form:"timeRange"`
	Distance      int      `form:"distance"`
}

type shareOutcomeKey struct{}

// browserShare reports what the page's share sheet did, posted as the "native" field.
func browserShare(ctx context.Context, _ feed.ShareTarget) error {
	switch ctx.Value(shareOutcomeKey{}) {
	case "shared":
		return nil
	case "cancelled":
		return errors.New("share sheet dismissed")
	default:
		return feed.ErrShareUnavailable
	}
}

func (h *Handlers) card(v *view, a models.Alert, userID string) alertCard {
	return alertCard{
		ID:          a.ID,
		Type:        a.DisplayType(),
		Location:    a.Location,
		Description: a.Description,
		Ago:         util.TimeAgo(a.CreatedAt, h.now()),
		Likes:       a.Likes,
		Shares:      a.Shares,
		Liked:       a.LikedByUser(userID),
		Flagged:     a.FlaggedByUser(userID),
		Shared:      a.SharedByUser(userID),
		Media:       a.Media,
		Share:       v.feed.ShareTarget(a.ID),
	}
}

// feedNotices translates the controller's pending notices.
func (h *Handlers) feedNotices(c *gin.Context, v *view) []notice {
	pending := v.feed.TakeNotices()
	out := make([]notice, 0, len(pending))
	for _, n := range pending {
		text := n.Raw
		if text == "" {
			data := n.Data
			if q, ok := data["Quality"].(string); ok {
				data["Quality"] = h.tr(c, "location.quality."+q, nil)
			}
			text = h.tr(c, n.MsgID, data)
		}
		out = append(out, notice{Level: n.Level, Text: text})
	}
	return out
}

// handleFeed 首次进入时加载，之后渲染当前状态；?refresh=1 强制重新加载
func (h *Handlers) handleFeed(c *gin.Context) {
	v := h.view(c)
	ctx := c.Request.Context()
	if !v.feedLoaded.Swap(true) || c.Query("refresh") != "" {
		if err := v.feed.Load(ctx); err != nil && api.SessionRejected(err) {
			h.redirectToLogin(c, "error.session_expired", "/feed")
			return
		}
	}

	fv := v.feed.View(ctx)
	cards := make([]alertCard, 0, len(fv.Alerts))
	for _, a := range fv.Alerts {
		cards = append(cards, h.card(v, a, fv.UserID))
	}
	h.render(c, http.StatusOK, "feed.html", feedPage{
		View:          fv,
		Cards:         cards,
		DefaultCity:   h.cfg.DefaultCity,
		Locating:      v.locating.Load(),
		IncidentTypes: models.IncidentTypes,
		TimeRanges:    timeRanges,
		Distances:     distances,
		Sorts:         sorts,
	}, h.feedNotices(c, v)...)
}

// backToFeed follows a feed mutation: login on a rejected session, else the feed.
func (h *Handlers) backToFeed(c *gin.Context, err error) {
	if err != nil && api.SessionRejected(err) {
		h.redirectToLogin(c, "error.session_expired", "/feed")
		return
	}
	c.Redirect(http.StatusSeeOther, "/feed")
}

func (h *Handlers) handleApplyFilters(c *gin.Context) {
	v := h.view(c)
	var form filterForm
	if err := c.ShouldBind(&form); err != nil {
		logger.Debug("filter form partially invalid", zap.Error(err))
	}
	err := v.feed.ApplyFilters(c.Request.Context(), models.FilterState{
		SortBy:        models.SortBy(form.SortBy),
		IncidentTypes: form.IncidentTypes,
		TimeRangeDays: form.TimeRange,
		DistanceKm:    form.Distance,
	})
	h.backToFeed(c, err)
}

func (h *Handlers) handleClearFilters(c *gin.Context) {
	h.backToFeed(c, h.view(c).feed.ClearFilters(c.Request.Context()))
}

func (h *Handlers) handleShowMore(c *gin.Context) {
	h.backToFeed(c, h.view(c).feed.ShowMore(c.Request.Context()))
}

func (h *Handlers) handleResetLocation(c *gin.Context) {
	h.backToFeed(c, h.view(c).feed.ResetLocation(c.Request.Context()))
}

func (h *Handlers) handleAcceptLowAccuracy(c *gin.Context) {
	h.view(c).feed.AcceptLowAccuracy()
	c.Redirect(http.StatusSeeOther, "/feed")
}

// locator prefers the browser when a page of the device is listening, with the
// GeoIP database as the low accuracy fallback.
func (h *Handlers) locator(c *gin.Context, v *view) geo.Locator {
	network := geo.NewNetwork(h.geoip, c.ClientIP())
	if !h.hub.Connected(v.device) {
		return network
	}
	return geo.Hybrid{Primary: v.browser, Fallback: network}
}

// handleLocate 异步定位，完成后通过 SSE 通知页面刷新
func (h *Handlers) handleLocate(c *gin.Context) {
	v := h.view(c)
	if v.locating.CompareAndSwap(false, true) {
		locator := h.locator(c, v)
		go func() {
			defer v.locating.Store(false)
			ctx, cancel := context.WithTimeout(context.Background(), locateBudget)
			defer cancel()
			if err := v.feed.ResolveMyLocation(ctx, locator); err != nil {
				logger.Debug("resolve location finished with error", zap.String("device", v.device), zap.Error(err))
			}
			h.hub.SendToDevice(v.device, "feed", map[string]bool{"reload": true})
		}()
	}
	c.Redirect(http.StatusSeeOther, "/feed")
}

// handleLocationReading receives the page's navigator.geolocation result.
func (h *Handlers) handleLocationReading(c *gin.Context) {
	v := h.view(c)
	var r geo.Reading
	if err := c.ShouldBind(&r); err != nil {
		response.Fail(c, "invalid reading", nil)
		return
	}
	if !v.browser.Deliver(r) {
		response.Result(c, http.StatusConflict, "no location request pending", nil)
		return
	}
	response.Success(c, "reading delivered", nil)
}

func (h *Handlers) handleAlertAction(action feed.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := h.view(c)
		ctx := c.Request.Context()
		id := c.Param("id")

		var r feed.ActionResult
		switch action {
		case feed.ActionLike:
			r = v.feed.Like(ctx, id)
		case feed.ActionFlag:
			r = v.feed.Flag(ctx, id)
		case feed.ActionShare:
			r = v.feed.Share(context.WithValue(ctx, shareOutcomeKey{}, c.PostForm("native")), id)
		}
		h.backToFeed(c, r.Err)
	}
}

func (h *Handlers) handleFeedGeoJSON(c *gin.Context) {
	b, err := h.view(c).feed.GeoJSON()
	if err != nil {
		logger.Error("geojson export failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", b)
}
