package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/s2"

	"tourprism/internal/models"
)

// EarthRadiusKm is the mean radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceKm 两点间大圆距离（km）
func DistanceKm(a, b models.Coords) float64 {
	p := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	q := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p.Distance(q).Radians() * EarthRadiusKm
}

// Geolocation error codes, numbered like the browser's PositionError.
const (
	CodeUnknown             = 0
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// GeoError is a failed position request.
type GeoError struct {
	Code    int
	Message string
}

func (e *GeoError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("geolocation error %d", e.Code)
}

// MsgID maps the code to its guidance text.
func (e *GeoError) MsgID() string {
	switch e.Code {
	case CodePermissionDenied:
		return "location.error.denied"
	case CodePositionUnavailable:
		return "location.error.unavailable"
	case CodeTimeout:
		return "location.error.timeout"
	default:
		return "location.error.unknown"
	}
}

// Retryable reports the codes that earn a second, low accuracy attempt.
func (e *GeoError) Retryable() bool {
	return e.Code == CodeTimeout || e.Code == CodePermissionDenied
}

// Request mirrors the browser's PositionOptions.
type Request struct {
	HighAccuracy bool          `json:"enableHighAccuracy"`
	Timeout      time.Duration `json:"-"`
	MaximumAge   time.Duration `json:"-"`
}

// DefaultTimeout bounds every position request.
const DefaultTimeout = 15 * time.Second

// Position is a successful reading; Accuracy is in meters.
type Position struct {
	Coords   models.Coords
	Accuracy float64
}

// Locator produces a device position.
type Locator interface {
	Locate(ctx context.Context, req Request) (Position, error)
}

type LocatorFunc func(ctx context.Context, req Request) (Position, error)

func (f LocatorFunc) Locate(ctx context.Context, req Request) (Position, error) { return f(ctx, req) }

// Fixed always answers with the same reading.
type Fixed Position

func (f Fixed) Locate(context.Context, Request) (Position, error) { return Position(f), nil }

// Hybrid asks Primary first. Low accuracy requests that fail for a reason other than
// a permission denial are handed to Fallback.
type Hybrid struct {
	Primary  Locator
	Fallback Locator
}

func (h Hybrid) Locate(ctx context.Context, req Request) (Position, error) {
	pos, err := h.Primary.Locate(ctx, req)
	if err == nil || req.HighAccuracy || h.Fallback == nil {
		return pos, err
	}
	if ge, ok := err.(*GeoError); ok && ge.Code == CodePermissionDenied {
		return pos, err
	}
	return h.Fallback.Locate(ctx, req)
}

// Attempt reports one locate call, for progress notices.
type Attempt func(req Request)

// LocateWithFallback asks for a high accuracy fix without cache reuse, then once more
// without high accuracy on timeout or denial. retried tells which attempt produced the result.
func LocateWithFallback(ctx context.Context, l Locator, onAttempt Attempt) (pos Position, retried bool, err error) {
	req := Request{HighAccuracy: true, Timeout: DefaultTimeout}
	if onAttempt != nil {
		onAttempt(req)
	}
	pos, err = l.Locate(ctx, req)
	if err == nil {
		return pos, false, nil
	}
	ge, ok := err.(*GeoError)
	if !ok || !ge.Retryable() {
		return Position{}, false, asGeoError(err)
	}
	req.HighAccuracy = false
	if onAttempt != nil {
		onAttempt(req)
	}
	pos, err = l.Locate(ctx, req)
	if err != nil {
		return Position{}, true, asGeoError(err)
	}
	return pos, true, nil
}

func asGeoError(err error) *GeoError {
	if ge, ok := err.(*GeoError); ok {
		return ge
	}
	return &GeoError{Code: CodeUnknown, Message: err.Error()}
}
