package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore 每个设备一个 hash，多实例部署共享
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建Redis存储
func NewRedisStore(config RedisConfig, ttl time.Duration) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisStore(client, ttl), nil
}

func newRedisStore(client *redis.Client, ttl time.Duration) *redisStore {
	return &redisStore{client: client, ttl: ttl}
}

func hashKey(namespace string) string { return "tourprism:device:" + namespace }

func (r *redisStore) GetItem(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := r.client.HGet(ctx, hashKey(namespace), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *redisStore) SetItem(ctx context.Context, namespace, key, value string) error {
	hk := hashKey(namespace)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, hk, key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, hk, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisStore) RemoveItem(ctx context.Context, namespace, key string) error {
	return r.client.HDel(ctx, hashKey(namespace), key).Err()
}

func (r *redisStore) Clear(ctx context.Context, namespace string) error {
	return r.client.Del(ctx, hashKey(namespace)).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
