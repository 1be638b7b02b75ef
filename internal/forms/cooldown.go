package forms

import (
	"context"
	"sync"
	"time"

	"tourprism/pkg/scheduler"
)

// DefaultCooldown gates OTP resends.
const DefaultCooldown = 60 * time.Second

// Cooldown 验证码重发倒计时，时钟可注入
type Cooldown struct {
	d   time.Duration
	now func() time.Time

	mu    sync.Mutex
	until time.Time
}

func NewCooldown(d time.Duration, now func() time.Time) *Cooldown {
	if d <= 0 {
		d = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Cooldown{d: d, now: now}
}

func (c *Cooldown) Start() {
	c.mu.Lock()
	c.until = c.now().Add(c.d)
	c.mu.Unlock()
}

func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.until.Sub(c.now())
	if r < 0 {
		return 0
	}
	return r
}

func (c *Cooldown) Active() bool { return c.Remaining() > 0 }

// Seconds rounds up, so the button reads 1s until it is really free.
func (c *Cooldown) Seconds() int {
	r := c.Remaining()
	return int((r + time.Second - 1) / time.Second)
}

// Watch calls tick every second with the seconds left, the last call being 0.
// The returned stop cancels it early, e.g. on view teardown.
func (c *Cooldown) Watch(s *scheduler.Scheduler, tick func(seconds int)) (stop func()) {
	var mu sync.Mutex
	var cancel func()
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	cancel = s.Every(time.Second, scheduler.FuncJob(func(ctx context.Context) {
		left := c.Seconds()
		tick(left)
		if left == 0 {
			stop()
		}
	}))
	return stop
}
