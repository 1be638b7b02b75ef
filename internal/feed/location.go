package feed

import (
	"context"
	"math"

	"go.uber.org/zap"

	"tourprism/internal/geo"
	"tourprism/internal/models"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
)

// ResolveMyLocation asks the locator for a fix (see geo.LocateWithFallback), labels it,
// persists it as the new location and re-fetches. A fix worse than 500 m raises the
// low accuracy advisory without blocking.
func (c *Controller) ResolveMyLocation(ctx context.Context, locator geo.Locator) error {
	c.mu.Lock()
	c.advisory = nil
	c.mu.Unlock()

	pos, retried, err := geo.LocateWithFallback(ctx, locator, func(req geo.Request) {
		if req.HighAccuracy {
			c.notify(Notice{MsgID: "location.accessing", Level: LevelInfo})
		} else {
			c.notify(Notice{MsgID: "location.lower_accuracy", Level: LevelInfo})
		}
	})
	if err != nil {
		ge, ok := err.(*geo.GeoError)
		if !ok {
			ge = &geo.GeoError{Message: err.Error()}
		}
		logger.Info("device location failed", zap.Int("code", ge.Code), zap.String("message", ge.Message))
		metrics.Observe(func(m *metrics.Metrics) { m.RecordGeolocation("error") })
		c.notify(Notice{MsgID: ge.MsgID(), Level: LevelError})
		return err
	}
	outcome := "high"
	if retried {
		outcome = "low"
	}
	metrics.Observe(func(m *metrics.Metrics) { m.RecordGeolocation(outcome) })

	loc := models.LocationContext{Label: "Your Location", Coords: &models.Coords{
		Latitude:  pos.Coords.Latitude,
		Longitude: pos.Coords.Longitude,
	}}
	acc := pos.Accuracy
	loc.Accuracy = &acc
	if c.geocoder != nil {
		label, gerr := c.geocoder.CityName(ctx, pos.Coords)
		if gerr != nil {
			logger.Warn("reverse geocode failed, using fallback label", zap.Error(gerr))
		}
		loc.Label = label
		if label != geo.UnknownLocation {
			loc.City = label
		}
	}

	if err := c.sess.SetLocation(ctx, loc); err != nil {
		logger.Warn("persist location failed", zap.Error(err))
	}

	c.mu.Lock()
	c.loc = loc
	if acc > models.LowAccuracyThreshold {
		c.advisory = &acc
	}
	c.notices = append(c.notices, Notice{
		MsgID: "location.accessed",
		Data: map[string]interface{}{
			"Quality": models.QualityLabel(acc),
			"Meters":  int(math.Round(acc)),
		},
		Level: LevelInfo,
	})
	c.mu.Unlock()

	return c.Load(ctx)
}

// AcceptLowAccuracy dismisses the advisory and keeps the current fix.
func (c *Controller) AcceptLowAccuracy() {
	c.mu.Lock()
	c.advisory = nil
	c.mu.Unlock()
}
