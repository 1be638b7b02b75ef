package metrics

import (
	"sync"
)

var (
	global *Metrics
	mu     sync.RWMutex
)

// SetGlobal 设置全局指标实例
func SetGlobal(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	global = m
}

// Global 获取全局指标实例，未设置时为 nil
func Global() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Observe runs fn against the global metrics when one is installed.
func Observe(fn func(m *Metrics)) {
	if m := Global(); m != nil {
		fn(m)
	}
}
