package storage

import (
	"context"
	"time"
)

// Store 按设备命名空间隔离的键值存储，对应浏览器的 localStorage
type Store interface {
	// GetItem 读取值，不存在时 ok 为 false
	GetItem(ctx context.Context, namespace, key string) (value string, ok bool, err error)

	// SetItem 写入值
	SetItem(ctx context.Context, namespace, key, value string) error

	// RemoveItem 删除单个键
	RemoveItem(ctx context.Context, namespace, key string) error

	// Clear 清空命名空间
	Clear(ctx context.Context, namespace string) error

	// Close 释放底层连接
	Close() error
}

// Config 存储配置
type Config struct {
	// memory | redis | sqlite | mysql | pg
	Driver string `env:"STORAGE_DRIVER"`
	DSN    string `env:"STORAGE_DSN"`

	Redis RedisConfig

	// 设备数据闲置多久后过期，0 表示不过期
	TTL time.Duration
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

// Device binds a Store to one device namespace, giving the localStorage shaped API.
type Device struct {
	store Store
	ns    string
}

func NewDevice(store Store, deviceID string) *Device {
	return &Device{store: store, ns: deviceID}
}

func (d *Device) ID() string { return d.ns }

func (d *Device) GetItem(ctx context.Context, key string) (string, bool, error) {
	return d.store.GetItem(ctx, d.ns, key)
}

func (d *Device) SetItem(ctx context.Context, key, value string) error {
	return d.store.SetItem(ctx, d.ns, key, value)
}

func (d *Device) RemoveItem(ctx context.Context, key string) error {
	return d.store.RemoveItem(ctx, d.ns, key)
}

func (d *Device) Clear(ctx context.Context) error {
	return d.store.Clear(ctx, d.ns)
}
