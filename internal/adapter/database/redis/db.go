package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"identityapp/internal/core/port"
	"identityapp/internal/core/telemetry"
)

const cacheName = "redis"

type redisRepository struct {
	client  goredis.UniversalClient
	metrics *telemetry.AppMetrics
}

func NewRedisRepository(ctx context.Context, addr string, metrics *telemetry.AppMetrics) (port.CacheRepository, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	return NewRedisRepositoryWithClient(client, metrics), nil
}

func NewRedisRepositoryWithClient(client goredis.UniversalClient, metrics *telemetry.AppMetrics) port.CacheRepository {
	return &redisRepository{client: client, metrics: metrics}
}

func (r *redisRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get returns nil, nil on a miss.
func (r *redisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()

	if errors.Is(err, goredis.Nil) {
		if r.metrics != nil {
			r.metrics.RecordCacheMiss(ctx, cacheName)
		}
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordCacheHit(ctx, cacheName)
	}

	return value, nil
}

func (r *redisRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisRepository) Close() error {
	return r.client.Close()
}
