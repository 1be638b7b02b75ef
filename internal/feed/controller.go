package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/models"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
)

// Backend is the part of api.Client the feed needs.
type Backend interface {
	ListAlerts(ctx context.Context, q api.AlertQuery) (*models.AlertPage, error)
	LikeAlert(ctx context.Context, id string) (*models.ActionResponse, error)
	ShareAlert(ctx context.Context, id string) (*models.ActionResponse, error)
	FlagAlert(ctx context.Context, id string) (*models.ActionResponse, error)
}

// SessionStore 会话里与 feed 相关的部分
type SessionStore interface {
	Current(ctx context.Context) models.Session
	Location(ctx context.Context) (models.LocationContext, bool)
	SetLocation(ctx context.Context, loc models.LocationContext) error
	ClearLocation(ctx context.Context) error
}

type Options struct {
	DefaultCity   string
	DefaultCenter models.Coords
	PageSize      int
	// ShareBaseURL prefixes alert links handed to the share sheet.
	ShareBaseURL string
	Now          func() time.Time
}

// Notice is a transient message for the user.
type Notice struct {
	MsgID string
	Data  map[string]interface{}
	// Raw is shown verbatim when set.
	Raw   string
	Level string
}

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// View is a consistent snapshot for rendering.
type View struct {
	Location    models.LocationContext
	Overridden  bool
	Filters     models.FilterState
	Alerts      []models.Alert
	Count       int
	Loading     bool
	ErrorMsgID  string
	HasMore     bool
	Page        int
	LowAccuracy *float64
	UserID      string
}

// Controller 单个 feed 视图实例的状态；每个设备一个
type Controller struct {
	backend  Backend
	sess     SessionStore
	geocoder ReverseGeocoder
	sharer   Sharer
	policy   ActionFailurePolicy
	opts     Options

	mu       sync.Mutex
	loc      models.LocationContext
	filters  models.FilterState
	fetched  []models.Alert
	visible  []models.Alert
	page     int
	hasMore  bool
	loading  bool
	errMsg   string
	notices  []Notice
	advisory *float64
	gen      uint64
}

// ReverseGeocoder is satisfied by geo.Nominatim.
type ReverseGeocoder interface {
	CityName(ctx context.Context, c models.Coords) (string, error)
}

type Option func(*Controller)

func WithGeocoder(g ReverseGeocoder) Option { return func(c *Controller) { c.geocoder = g } }

func WithSharer(s Sharer) Option { return func(c *Controller) { c.sharer = s } }

func WithFailurePolicy(p ActionFailurePolicy) Option { return func(c *Controller) { c.policy = p } }

// NewController restores the last persisted location, else the default city.
func NewController(ctx context.Context, backend Backend, sess SessionStore, opts Options, options ...Option) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.DefaultCity == "" {
		opts.DefaultCity = "Edinburgh"
	}
	c := &Controller{
		backend: backend,
		sess:    sess,
		policy:  ToastOnFailure,
		opts:    opts,
		filters: models.DefaultFilters(),
		loc:     models.CityContext(opts.DefaultCity),
	}
	for _, o := range options {
		o(c)
	}
	if loc, ok := sess.Location(ctx); ok {
		c.loc = loc
	}
	return c
}

// View returns a snapshot; notices are not included, see TakeNotices.
func (c *Controller) View(ctx context.Context) View {
	userID := ""
	if u := c.sess.Current(ctx).User; u != nil {
		userID = u.ID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Location:   c.loc,
		Overridden: c.overridden(),
		Filters:    c.filters,
		Alerts:     append([]models.Alert(nil), c.visible...),
		Count:      len(c.visible),
		Loading:    c.loading,
		ErrorMsgID: c.errMsg,
		HasMore:    c.hasMore,
		Page:       c.page,
		UserID:     userID,
	}
	if c.advisory != nil {
		a := *c.advisory
		v.LowAccuracy = &a
	}
	return v
}

// TakeNotices returns pending notices and clears them.
func (c *Controller) TakeNotices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notices
	c.notices = nil
	return n
}

func (c *Controller) notify(n Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
}

func (c *Controller) overridden() bool {
	return c.loc.HasCoords() || c.loc.Label != c.opts.DefaultCity
}

// Load fetches page one for the current location and filters.
func (c *Controller) Load(ctx context.Context) error {
	return c.fetch(ctx, 1)
}

// ApplyFilters replaces the filter state and re-fetches.
func (c *Controller) ApplyFilters(ctx context.Context, f models.FilterState) error {
	c.mu.Lock()
	c.filters = f.Normalize()
	c.mu.Unlock()
	return c.Load(ctx)
}

// ClearFilters resets every filter field and re-fetches with the active location.
func (c *Controller) ClearFilters(ctx context.Context) error {
	return c.ApplyFilters(ctx, models.DefaultFilters())
}

// ResetLocation goes back to the default city and forgets the persisted location.
func (c *Controller) ResetLocation(ctx context.Context) error {
	c.mu.Lock()
	c.loc = models.CityContext(c.opts.DefaultCity)
	c.advisory = nil
	c.mu.Unlock()
	if err := c.sess.ClearLocation(ctx); err != nil {
		logger.Warn("clear stored location failed", zap.Error(err))
	}
	return c.Load(ctx)
}

// ShowMore advances to the next backend page with the same parameters.
func (c *Controller) ShowMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	next := c.page + 1
	c.mu.Unlock()
	return c.fetch(ctx, next)
}

func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

func (c *Controller) query(page int) api.AlertQuery {
	q := api.AlertQuery{
		DistanceKm:    c.filters.DistanceKm,
		IncidentTypes: append([]string(nil), c.filters.IncidentTypes...),
		SortBy:        c.filters.SortBy,
		Page:          page,
		Limit:         c.opts.PageSize,
	}
	if c.loc.HasCoords() {
		co := *c.loc.Coords
		q.Coords = &co
	} else {
		q.City = c.loc.City
		if q.City == "" {
			q.City = c.loc.Label
		}
	}
	if c.filters.TimeRangeDays > 0 {
		q.StartDate = c.opts.Now().AddDate(0, 0, -c.filters.TimeRangeDays)
	}
	return q
}

func (c *Controller) fetch(ctx context.Context, page int) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	q := c.query(page)
	c.loading = true
	c.mu.Unlock()

	res, err := c.backend.ListAlerts(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		logger.Debug("dropping superseded feed response", zap.Uint64("gen", gen), zap.Uint64("latest", c.gen))
		return nil
	}
	c.loading = false

	if err != nil {
		logger.Warn("feed load failed", zap.String("location", c.loc.Label), zap.Error(err))
		c.errMsg = "feed.load_failed"
		// any failed load, ShowMore included, shows the banner over an empty list
		c.fetched, c.visible = nil, nil
		c.page, c.hasMore = 0, false
		metrics.Observe(func(m *metrics.Metrics) { m.RecordFeedLoad("error", 0) })
		return err
	}
	c.errMsg = ""

	if page == 1 {
		c.fetched = append([]models.Alert(nil), res.Alerts...)
	} else {
		c.fetched = mergeUnseen(c.fetched, res.Alerts)
	}
	c.page = page
	if res.Envelope && res.TotalPages > 0 {
		c.hasMore = res.CurrentPage < res.TotalPages
	} else {
		c.hasMore = len(res.Alerts) >= c.opts.PageSize
	}
	c.refilter()

	metrics.Observe(func(m *metrics.Metrics) { m.RecordFeedLoad("ok", len(c.visible)) })
	if len(c.visible) == 0 {
		if c.loc.HasCoords() {
			c.notices = append(c.notices, Notice{MsgID: "feed.empty_location", Level: LevelInfo})
		} else {
			c.notices = append(c.notices, Notice{
				MsgID: "feed.empty_city",
				Data:  map[string]interface{}{"City": c.loc.Label},
				Level: LevelInfo,
			})
		}
	}
	return nil
}

// refilter rebuilds the visible list; callers hold mu.
func (c *Controller) refilter() {
	now := c.opts.Now()
	basis := c.opts.DefaultCenter
	if c.loc.HasCoords() {
		basis = *c.loc.Coords
	}
	c.visible = Filter(c.fetched, c.filters, basis, now)
	Sort(c.visible, c.filters.SortBy, now)
}

func mergeUnseen(have, more []models.Alert) []models.Alert {
	seen := make(map[string]bool, len(have))
	for _, a := range have {
		seen[a.ID] = true
	}
	for _, a := range more {
		if a.ID != "" && seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		have = append(have, a)
	}
	return have
}
