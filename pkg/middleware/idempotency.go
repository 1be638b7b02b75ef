package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

const IdempotencyField = "idempotency_key"

type IdemStore interface {
	Set(key string, ttl time.Duration) bool // return true if set, false if exists
}

type memoryIdemStore struct {
	c *gocache.Cache
}

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{c: gocache.New(10*time.Minute, time.Minute)}
}

func (s *memoryIdemStore) Set(key string, ttl time.Duration) bool {
	return s.c.Add(key, struct{}{}, ttl) == nil
}

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 重复提交的拒绝窗口
	Store      IdemStore     // 可选外部存储
	Duplicate  gin.HandlerFunc
}

// IdempotencyMiddleware 拒绝同一表单令牌的重复提交。
// 令牌取自请求头或隐藏字段 idempotency_key，缺失时直接放行。
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = newMemoryIdemStore()
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			key = strings.TrimSpace(c.PostForm(IdempotencyField))
		}
		if key == "" {
			c.Next()
			return
		}
		if !store.Set(c.FullPath()+":"+key, cfg.TTL) {
			if cfg.Duplicate != nil {
				cfg.Duplicate(c)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate request"})
			return
		}
		c.Next()
	}
}
