package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Client 一条 SSE 连接；同一设备可能开多个标签页
type Client struct {
	id     string
	device string
	ch     chan string
	done   chan struct{}
}

// Hub 按设备分组的事件推送中心
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	devices  map[string]map[string]bool // device -> clientID set
	interval time.Duration
	retryMs  int

	// OnEmpty is called after the last connection of a device goes away.
	OnEmpty func(device string)
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{clients: make(map[string]*Client), devices: make(map[string]map[string]bool), interval: interval, retryMs: 5000}
}

func (h *Hub) AddClient(device string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{id: uuid.NewString(), device: device, ch: make(chan string, 16), done: make(chan struct{})}
	h.clients[c.id] = c
	if h.devices[device] == nil {
		h.devices[device] = make(map[string]bool)
	}
	h.devices[device][c.id] = true
	return c
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	empty := false
	if _, ok := h.clients[c.id]; ok {
		close(c.done)
		delete(h.clients, c.id)
		delete(h.devices[c.device], c.id)
		if len(h.devices[c.device]) == 0 {
			delete(h.devices, c.device)
			empty = true
		}
	}
	onEmpty := h.OnEmpty
	h.mu.Unlock()
	if empty && onEmpty != nil {
		onEmpty(c.device)
	}
}

// Close ends every open stream, used on shutdown so Serve loops return.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.RemoveClient(c)
	}
}

// Connected reports whether a device has at least one open stream.
func (h *Hub) Connected(device string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices[device]) > 0
}

// SendToDevice 推送一个命名事件到设备的全部连接，缓冲满时丢弃
func (h *Hub) SendToDevice(device, event string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	msg := formatEvent(event, string(b))
	h.mu.RLock()
	for id := range h.devices[device] {
		if c := h.clients[id]; c != nil {
			select {
			case c.ch <- msg:
			default:
			}
		}
	}
	h.mu.RUnlock()
}

func formatEvent(event, data string) string {
	if event == "" {
		return fmt.Sprintf("data: %s\n\n", data)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// Serve 阻塞直到客户端断开；onOpen 在注册后调用，可用来推送首帧
func (h *Hub) Serve(c *gin.Context, device string, onOpen func()) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	client := h.AddClient(device)
	defer h.RemoveClient(client)
	if onOpen != nil {
		onOpen()
	}

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			_, _ = c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
