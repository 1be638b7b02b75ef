package postalert

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/geo"
	"tourprism/internal/models"
	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
)

const (
	MaxOtherType   = 150
	MaxDescription = 500
	MaxMedia       = 5
)

// Path is where the form lives; it is the return path after a forced login.
const Path = "/post-alert"

// ErrLoginRequired means the session is missing or expired.
var ErrLoginRequired = errors.New(errors.KindUnauthorized, "login required").WithMsgID("guard.login_to_post")

type Poster interface {
	CreateAlert(ctx context.Context, a api.NewAlert) (*models.Alert, error)
}

type PlaceResolver interface {
	Details(ctx context.Context, placeID string) (*geo.Place, error)
}

// SessionChecker is satisfied by session.Provider.
type SessionChecker interface {
	Expired(ctx context.Context) bool
	Clear(ctx context.Context) error
}

// Form 表单字段；超长文本在输入时截断
type Form struct {
	IncidentType string
	OtherType    string
	Location     string
	City         string
	Coords       *models.Coords
	Description  string
	Media        []api.Upload
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func (f *Form) SetIncidentType(t string) {
	f.IncidentType = t
	if t != models.IncidentOther {
		f.OtherType = ""
	}
}

func (f *Form) SetOtherType(s string) { f.OtherType = truncate(s, MaxOtherType) }

func (f *Form) SetDescription(s string) { f.Description = truncate(s, MaxDescription) }

// SetLocationText changes the typed text; coordinates are dropped until a place is picked.
func (f *Form) SetLocationText(s string) {
	if s == f.Location {
		return
	}
	f.Location = s
	f.Coords = nil
	f.City = ""
}

func (f *Form) SetPlace(p geo.Place) {
	f.Location = p.Address
	f.City = p.City
	c := p.Coords
	f.Coords = &c
}

// AddMedia refuses the whole batch when it would pass the cap.
func (f *Form) AddMedia(files ...api.Upload) error {
	if len(f.Media)+len(files) > MaxMedia {
		return errors.Validation(map[string]string{"media": "alert.media_limit"})
	}
	f.Media = append(f.Media, files...)
	return nil
}

func (f *Form) RemoveMedia(i int) {
	if i < 0 || i >= len(f.Media) {
		return
	}
	f.Media = append(f.Media[:i], f.Media[i+1:]...)
}

func (f *Form) Validate() error {
	fields := map[string]string{}
	switch {
	case f.IncidentType == "":
		fields["incidentType"] = "alert.type_required"
	case !validType(f.IncidentType):
		fields["incidentType"] = "alert.type_required"
	case f.IncidentType == models.IncidentOther && strings.TrimSpace(f.OtherType) == "":
		fields["otherType"] = "alert.other_required"
	}
	if strings.TrimSpace(f.Location) == "" || f.Coords == nil {
		fields["location"] = "alert.location_required"
	}
	if strings.TrimSpace(f.Description) == "" {
		fields["description"] = "alert.description_required"
	}
	return errors.Validation(fields)
}

func validType(t string) bool {
	for _, v := range models.PostIncidentTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (f *Form) payload() api.NewAlert {
	a := api.NewAlert{
		IncidentType: f.IncidentType,
		Location:     f.Location,
		City:         f.City,
		Description:  f.Description,
		Media:        f.Media,
	}
	if f.IncidentType == models.IncidentOther {
		a.OtherType = f.OtherType
	}
	if f.Coords != nil {
		a.Latitude = f.Coords.Latitude
		a.Longitude = f.Coords.Longitude
	}
	return a
}

// Controller 发布警报的视图状态
type Controller struct {
	poster Poster
	places PlaceResolver
	sess   SessionChecker

	mu        sync.Mutex
	form      Form
	submitted bool
	created   *models.Alert
}

func NewController(poster Poster, places PlaceResolver, sess SessionChecker) *Controller {
	return &Controller{poster: poster, places: places, sess: sess}
}

// Mount checks the session when the form is opened.
func (c *Controller) Mount(ctx context.Context) error {
	if c.sess.Expired(ctx) {
		return ErrLoginRequired
	}
	return nil
}

// Form returns a copy of the current fields.
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.form
	f.Media = append([]api.Upload(nil), c.form.Media...)
	return f
}

// Update edits the form under the view lock.
func (c *Controller) Update(fn func(f *Form) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(&c.form)
}

// PickPlace resolves an autocomplete suggestion into the location fields.
func (c *Controller) PickPlace(ctx context.Context, placeID string) error {
	if c.places == nil {
		return errors.New(errors.KindValidation, "place lookup disabled").WithMsgID("alert.location_required")
	}
	p, err := c.places.Details(ctx, placeID)
	if err != nil {
		logger.Warn("place details failed", zap.String("place", placeID), zap.Error(err))
		return errors.Wrap(errors.KindNetwork, err, "place details").WithMsgID("error.network")
	}
	c.mu.Lock()
	c.form.SetPlace(*p)
	c.mu.Unlock()
	return nil
}

func (c *Controller) Submitted() (bool, *models.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted, c.created
}

// Submit re-checks the session, validates, then posts the multipart body.
func (c *Controller) Submit(ctx context.Context) error {
	if c.sess.Expired(ctx) {
		return ErrLoginRequired
	}
	c.mu.Lock()
	if err := c.form.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	payload := c.form.payload()
	c.mu.Unlock()

	created, err := c.poster.CreateAlert(ctx, payload)
	if err != nil {
		if api.SessionRejected(err) {
			if cerr := c.sess.Clear(ctx); cerr != nil {
				logger.Warn("clear session failed", zap.Error(cerr))
			}
			return ErrLoginRequired
		}
		logger.Warn("alert submission failed", zap.Error(err))
		id, raw := api.Describe(err, "alert.submit_failed")
		return errors.Wrap(errors.KindOf(err), err, raw).WithMsgID(id)
	}

	c.mu.Lock()
	c.submitted = true
	c.created = created
	c.mu.Unlock()
	logger.Info("alert submitted", zap.String("type", payload.IncidentType), zap.String("city", payload.City))
	return nil
}

// PostAnother resets everything for a fresh form.
func (c *Controller) PostAnother() {
	c.mu.Lock()
	c.form = Form{}
	c.submitted = false
	c.created = nil
	c.mu.Unlock()
}
