package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"identityapp/internal/core/port"
	"identityapp/internal/core/telemetry"
)

const cacheName = "memory"

type memoryRepository struct {
	cache   *cache.Cache
	metrics *telemetry.AppMetrics
}

// NewMemoryRepository keeps entries in process. metrics may be nil.
func NewMemoryRepository(metrics *telemetry.AppMetrics) port.CacheRepository {
	return &memoryRepository{
		cache:   cache.New(5*time.Minute, 10*time.Minute),
		metrics: metrics,
	}
}

func (c *memoryRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.cache.Set(key, stored, ttl)
	return nil
}

// Get returns nil, nil on a miss.
func (c *memoryRepository) Get(ctx context.Context, key string) ([]byte, error) {
	value, found := c.cache.Get(key)
	if !found {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(ctx, cacheName)
		}
		return nil, nil
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit(ctx, cacheName)
	}

	return value.([]byte), nil
}

func (c *memoryRepository) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

func (c *memoryRepository) Close() error {
	c.cache.Flush()
	return nil
}
