package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"tourprism/internal/models"
	"tourprism/pkg/logger"
	"tourprism/pkg/storage"
)

// Storage keys, one namespace per device.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyLocation = "location"
)

// Provider 会话上下文：所有读取 token / 用户 / 位置的地方都经过这里
type Provider struct {
	dev *storage.Device
	now func() time.Time

	mu   sync.Mutex
	subs map[int]func(models.Session)
	next int
}

func NewProvider(dev *storage.Device) *Provider {
	return &Provider{dev: dev, now: time.Now, subs: make(map[int]func(models.Session))}
}

// WithClock replaces the clock used by Expired.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) DeviceID() string { return p.dev.ID() }

// Token implements api.TokenSource.
func (p *Provider) Token(ctx context.Context) string {
	tok, _ := p.get(ctx, KeyToken)
	return tok
}

func (p *Provider) Current(ctx context.Context) models.Session {
	s := models.Session{Token: p.Token(ctx)}
	if raw, ok := p.get(ctx, KeyUser); ok {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			logger.Warn("stored user is unreadable", zap.String("device", p.dev.ID()), zap.Error(err))
		} else {
			s.User = &u
		}
	}
	return s
}

// Establish stores a fresh session and notifies subscribers.
func (p *Provider) Establish(ctx context.Context, token string, user *models.User) error {
	if err := p.dev.SetItem(ctx, KeyToken, token); err != nil {
		return err
	}
	if user != nil {
		if err := p.putUser(ctx, user); err != nil {
			return err
		}
	}
	p.publish(ctx)
	return nil
}

func (p *Provider) SetUser(ctx context.Context, user *models.User) error {
	if err := p.putUser(ctx, user); err != nil {
		return err
	}
	p.publish(ctx)
	return nil
}

func (p *Provider) putUser(ctx context.Context, user *models.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return p.dev.SetItem(ctx, KeyUser, string(b))
}

// Clear drops token and user. The last location survives a logout.
func (p *Provider) Clear(ctx context.Context) error {
	if err := p.dev.RemoveItem(ctx, KeyToken); err != nil {
		return err
	}
	if err := p.dev.RemoveItem(ctx, KeyUser); err != nil {
		return err
	}
	p.publish(ctx)
	return nil
}

// Subscribe registers fn for session changes and returns its unsubscribe func.
func (p *Provider) Subscribe(fn func(models.Session)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) publish(ctx context.Context) {
	s := p.Current(ctx)
	p.mu.Lock()
	fns := make([]func(models.Session), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// Location returns the last resolved location, if any.
func (p *Provider) Location(ctx context.Context) (models.LocationContext, bool) {
	raw, ok := p.get(ctx, KeyLocation)
	if !ok {
		return models.LocationContext{}, false
	}
	var loc models.LocationContext
	if err := json.Unmarshal([]byte(raw), &loc); err != nil || loc.Label == "" {
		return models.LocationContext{}, false
	}
	return loc, true
}

func (p *Provider) SetLocation(ctx context.Context, loc models.LocationContext) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return p.dev.SetItem(ctx, KeyLocation, string(b))
}

func (p *Provider) ClearLocation(ctx context.Context) error {
	return p.dev.RemoveItem(ctx, KeyLocation)
}

// Expired reports a missing token, or a JWT whose exp has passed.
// Tokens that are not JWTs are opaque and never considered expired here.
func (p *Provider) Expired(ctx context.Context) bool {
	tok := p.Token(ctx)
	if tok == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !p.now().Before(exp.Time)
}

func (p *Provider) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := p.dev.GetItem(ctx, key)
	if err != nil {
		logger.Warn("session storage read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok && v != ""
}
