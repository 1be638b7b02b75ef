package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tourprism/internal/models"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
	"tourprism/pkg/scheduler"
)

// Window is how many notifications each "show more" reveals.
const Window = 10

// DefaultRefresh is the polling interval while the panel is open.
const DefaultRefresh = 30 * time.Second

type Backend interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Panel 通知面板：打开期间定时刷新，关闭时取消
type Panel struct {
	backend  Backend
	cron     *scheduler.Cron
	interval time.Duration
	onChange func(unread int)

	mu         sync.Mutex
	items      []models.Notification
	unreadOnly bool
	window     int
	errMsg     string
	entry      cron.EntryID
	polling    bool
	gen        uint64
}

// NewPanel wires the panel. onChange, when set, receives the unread count after each refresh.
func NewPanel(backend Backend, c *scheduler.Cron, interval time.Duration, onChange func(unread int)) *Panel {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return &Panel{backend: backend, cron: c, interval: interval, onChange: onChange, window: Window}
}

// Open refreshes now and starts polling.
func (p *Panel) Open(ctx context.Context) error {
	err := p.Refresh(ctx)
	if serr := p.StartPolling(); serr != nil {
		logger.Warn("notification polling not started", zap.Error(serr))
	}
	return err
}

func (p *Panel) StartPolling() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.polling || p.cron == nil {
		return nil
	}
	id, err := p.cron.AddEvery(p.interval, scheduler.FuncJob(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, p.interval)
		defer cancel()
		if err := p.Refresh(ctx); err != nil {
			logger.Debug("notification poll failed", zap.Error(err))
		}
	}))
	if err != nil {
		return err
	}
	p.entry, p.polling = id, true
	return nil
}

// Close stops polling. Safe to call more than once.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.polling {
		p.cron.Remove(p.entry)
		p.polling = false
	}
}

func (p *Panel) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

// Refresh replaces the list with the backend's. On failure the previous list stays.
// Only the latest issued fetch is applied, so a slow poll cannot undo a mutation.
func (p *Panel) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	list, err := p.backend.Notifications(ctx)
	metrics.Observe(func(m *metrics.Metrics) { m.RecordNotificationPoll(err == nil) })

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		logger.Debug("dropping superseded notifications response", zap.Uint64("gen", gen))
		return nil
	}
	if err != nil {
		p.errMsg = "notifications.load_failed"
		p.mu.Unlock()
		logger.Warn("fetch notifications failed", zap.Error(err))
		return err
	}
	p.errMsg = ""
	p.items = list
	unread := countUnread(list)
	p.mu.Unlock()

	if p.onChange != nil {
		p.onChange(unread)
	}
	return nil
}

func (p *Panel) MarkRead(ctx context.Context, id string) error {
	return p.mutate(ctx, func(ctx context.Context) error { return p.backend.MarkNotificationRead(ctx, id) })
}

func (p *Panel) Delete(ctx context.Context, id string) error {
	return p.mutate(ctx, func(ctx context.Context) error { return p.backend.DeleteNotification(ctx, id) })
}

// MarkAllRead always asks the backend; the local list may be missing newer items.
func (p *Panel) MarkAllRead(ctx context.Context) error {
	return p.mutate(ctx, p.backend.MarkAllNotificationsRead)
}

// mutate runs call then re-fetches the whole list.
func (p *Panel) mutate(ctx context.Context, call func(context.Context) error) error {
	if err := call(ctx); err != nil {
		logger.Warn("notification action failed", zap.Error(err))
		p.mu.Lock()
		p.errMsg = "notifications.action_failed"
		p.mu.Unlock()
		return err
	}
	return p.Refresh(ctx)
}

// SetUnreadOnly toggles the filter and resets the window.
func (p *Panel) SetUnreadOnly(on bool) {
	p.mu.Lock()
	p.unreadOnly = on
	p.window = Window
	p.mu.Unlock()
}

func (p *Panel) ShowMore() {
	p.mu.Lock()
	p.window += Window
	p.mu.Unlock()
}

// View is what the panel renders.
type View struct {
	Items      []models.Notification
	Total      int
	Unread     int
	UnreadOnly bool
	HasMore    bool
	ErrorMsgID string
	Empty      bool
}

func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	filtered := p.items
	if p.unreadOnly {
		filtered = make([]models.Notification, 0, len(p.items))
		for _, n := range p.items {
			if !n.IsRead {
				filtered = append(filtered, n)
			}
		}
	}
	shown := filtered
	if len(shown) > p.window {
		shown = shown[:p.window]
	}
	return View{
		Items:      append([]models.Notification(nil), shown...),
		Total:      len(p.items),
		Unread:     countUnread(p.items),
		UnreadOnly: p.unreadOnly,
		HasMore:    len(filtered) > p.window,
		ErrorMsgID: p.errMsg,
		Empty:      len(p.items) == 0,
	}
}

func (p *Panel) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return countUnread(p.items)
}

func countUnread(list []models.Notification) int {
	n := 0
	for _, x := range list {
		if !x.IsRead {
			n++
		}
	}
	return n
}
