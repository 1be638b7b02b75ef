package storage

import (
	"fmt"
	"strings"
	"time"

	"tourprism/pkg/util"
)

const defaultTTL = 30 * 24 * time.Hour

// NewStore 根据驱动创建存储实例
func NewStore(config Config) (Store, error) {
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	switch strings.ToLower(config.Driver) {
	case "", "memory", "gocache":
		return NewMemoryStore(config.TTL), nil
	case "redis":
		return NewRedisStore(config.Redis, config.TTL)
	case "sqlite", "mysql", "pg", "postgres":
		db, err := util.OpenDB(strings.ToLower(config.Driver), config.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", config.Driver, err)
		}
		return NewGormStore(db)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", config.Driver)
	}
}
