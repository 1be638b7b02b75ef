package storage

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const sep = "\x00"

// memoryStore 基于 go-cache 的进程内实现，单实例部署使用
type memoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryStore 创建内存存储，ttl 为每次写入后的保留时长
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{
		cache: gocache.New(ttl, ttl/4+time.Minute),
		ttl:   ttl,
	}
}

func itemKey(namespace, key string) string { return namespace + sep + key }

func (m *memoryStore) GetItem(ctx context.Context, namespace, key string) (string, bool, error) {
	v, found := m.cache.Get(itemKey(namespace, key))
	if !found {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *memoryStore) SetItem(ctx context.Context, namespace, key, value string) error {
	m.cache.Set(itemKey(namespace, key), value, m.ttl)
	return nil
}

func (m *memoryStore) RemoveItem(ctx context.Context, namespace, key string) error {
	m.cache.Delete(itemKey(namespace, key))
	return nil
}

func (m *memoryStore) Clear(ctx context.Context, namespace string) error {
	prefix := namespace + sep
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			m.cache.Delete(k)
		}
	}
	return nil
}

func (m *memoryStore) Close() error { return nil }
