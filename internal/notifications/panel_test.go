package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/internal/models"
	"tourprism/pkg/scheduler"
)

type fakeBackend struct {
	mu    sync.Mutex
	items []models.Notification
	calls []string
	fail  bool

	// hold, when set, parks the next list call after it has read the items
	hold    chan struct{}
	holding chan struct{}
}

func (f *fakeBackend) Notifications(context.Context) ([]models.Notification, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "list")
	if f.fail {
		f.mu.Unlock()
		return nil, errors.New("down")
	}
	list := append([]models.Notification(nil), f.items...)
	hold, holding := f.hold, f.holding
	f.hold, f.holding = nil, nil
	f.mu.Unlock()

	if hold != nil {
		close(holding)
		<-hold
	}
	return list, nil
}

func (f *fakeBackend) MarkNotificationRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "read:"+id)
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeBackend) MarkAllNotificationsRead(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "read-all")
	for i := range f.items {
		f.items[i].IsRead = true
	}
	return nil
}

func (f *fakeBackend) DeleteNotification(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+id)
	out := f.items[:0]
	for _, n := range f.items {
		if n.ID != id {
			out = append(out, n)
		}
	}
	f.items = out
	return nil
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func seed(n, unread int) []models.Notification {
	out := make([]models.Notification, n)
	for i := range out {
		out[i] = models.Notification{ID: fmt.Sprintf("n%d", i), IsRead: i >= unread}
	}
	return out
}

func TestActionsRefetch(t *testing.T) {
	b := &fakeBackend{items: seed(3, 2)}
	var badge []int
	p := NewPanel(b, nil, 0, func(n int) { badge = append(badge, n) })
	ctx := context.Background()

	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 2, p.UnreadCount())

	require.NoError(t, p.MarkRead(ctx, "n0"))
	require.NoError(t, p.Delete(ctx, "n2"))
	assert.Equal(t, []string{"list", "read:n0", "list", "delete:n2", "list"}, b.callLog())
	assert.Equal(t, []int{2, 1, 1}, badge)
	assert.Equal(t, 2, p.View().Total)
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	b := &fakeBackend{items: seed(4, 3)}
	p := NewPanel(b, nil, 0, nil)
	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))

	require.NoError(t, p.MarkAllRead(ctx))
	first := p.View()
	require.NoError(t, p.MarkAllRead(ctx))
	second := p.View()

	assert.Equal(t, first, second)
	assert.Equal(t, 0, second.Unread)
	for _, n := range second.Items {
		assert.True(t, n.IsRead)
	}
}

func TestMarkAllReadReachesItemsNotYetFetched(t *testing.T) {
	b := &fakeBackend{items: seed(2, 0)}
	p := NewPanel(b, nil, 0, nil)
	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))
	require.Equal(t, 0, p.UnreadCount())

	b.mu.Lock()
	b.items = append(b.items, models.Notification{ID: "new"})
	b.mu.Unlock()

	require.NoError(t, p.MarkAllRead(ctx))
	assert.Equal(t, []string{"list", "read-all", "list"}, b.callLog())
	v := p.View()
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 0, v.Unread)
}

func TestSlowPollDoesNotUndoDelete(t *testing.T) {
	b := &fakeBackend{items: seed(2, 0)}
	p := NewPanel(b, nil, 0, nil)
	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))

	hold, holding := make(chan struct{}), make(chan struct{})
	b.mu.Lock()
	b.hold, b.holding = hold, holding
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.Refresh(ctx) }()
	<-holding

	require.NoError(t, p.Delete(ctx, "n0"))
	close(hold)
	require.NoError(t, <-done)

	v := p.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, "n1", v.Items[0].ID)
}

func TestUnreadToggleAndWindow(t *testing.T) {
	b := &fakeBackend{items: seed(25, 12)}
	p := NewPanel(b, nil, 0, nil)
	require.NoError(t, p.Refresh(context.Background()))

	v := p.View()
	assert.Len(t, v.Items, 10)
	assert.True(t, v.HasMore)

	p.ShowMore()
	p.ShowMore()
	v = p.View()
	assert.Len(t, v.Items, 25)
	assert.False(t, v.HasMore)

	p.SetUnreadOnly(true)
	v = p.View()
	assert.Len(t, v.Items, 10)
	assert.True(t, v.HasMore)
	for _, n := range v.Items {
		assert.False(t, n.IsRead)
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	b := &fakeBackend{items: seed(2, 1)}
	p := NewPanel(b, nil, 0, nil)
	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))

	b.fail = true
	assert.Error(t, p.Refresh(ctx))
	v := p.View()
	assert.Equal(t, "notifications.load_failed", v.ErrorMsgID)
	assert.Equal(t, 2, v.Total)
}

func TestPollingStartsAndStops(t *testing.T) {
	c := scheduler.NewCron(time.UTC)
	c.Start()
	defer c.Stop()

	b := &fakeBackend{items: seed(1, 1)}
	p := NewPanel(b, c, time.Second, nil)
	require.NoError(t, p.Open(context.Background()))
	assert.True(t, p.Polling())
	assert.Len(t, c.Entries(), 1)

	require.Eventually(t, func() bool { return len(b.callLog()) >= 2 }, 3*time.Second, 50*time.Millisecond)

	p.Close()
	p.Close()
	assert.False(t, p.Polling())
	assert.Empty(t, c.Entries())
}
