package geo

import (
	"context"
	"sync"
	"time"
)

// Reading is what the page posts back after calling navigator.geolocation.
type Reading struct {
	Code      int     `json:"code" form:"code"`
	Message   string  `json:"message" form:"message"`
	Latitude  float64 `json:"latitude" form:"latitude"`
	Longitude float64 `json:"longitude" form:"longitude"`
	Accuracy  float64 `json:"accuracy" form:"accuracy"`
}

// Push hands a position request to the browser, typically over SSE.
type Push func(req Request) error

// grace covers the round trip on top of the browser side timeout.
const grace = 5 * time.Second

// Browser is a Locator backed by the device's browser. Locate pushes the request and
// waits for Deliver.
type Browser struct {
	push Push

	mu      sync.Mutex
	pending chan Reading
}

func NewBrowser(push Push) *Browser {
	return &Browser{push: push}
}

func (b *Browser) Locate(ctx context.Context, req Request) (Position, error) {
	ch := make(chan Reading, 1)
	b.mu.Lock()
	b.pending = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		if b.pending == ch {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	if err := b.push(req); err != nil {
		return Position{}, &GeoError{Code: CodeUnknown, Message: err.Error()}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout + grace)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.Code != 0 {
			return Position{}, &GeoError{Code: r.Code, Message: r.Message}
		}
		return Position{
			Coords:   coords(r.Latitude, r.Longitude),
			Accuracy: r.Accuracy,
		}, nil
	case <-timer.C:
		return Position{}, &GeoError{Code: CodeTimeout}
	case <-ctx.Done():
		return Position{}, &GeoError{Code: CodeTimeout, Message: ctx.Err().Error()}
	}
}

// Deliver passes a reading to the waiting Locate. It reports false when nothing waits.
func (b *Browser) Deliver(r Reading) bool {
	b.mu.Lock()
	ch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- r
	return true
}
