package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/autobrr-sub001/internal/observability"
)

// Cache fronts a Store with de-duplicated loads. Loads that started before
// an invalidation of their key are not written back.
type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	epochs map[string]uint64
}

// New creates a Cache. metrics may be nil.
func New(store Store, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		epochs:  make(map[string]uint64),
	}
}

// Store returns the backing store.
func (c *Cache) Store() Store { return c.store }

// HealthCheck delegates to the store.
func (c *Cache) HealthCheck(ctx context.Context) error { return c.store.HealthCheck(ctx) }

// Fetch returns the cached value for key, or loads, stores and returns it.
// Concurrent fetches of the same key share one load. Store failures are
// logged and never fail the fetch.
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T
	resource := key.Resource()

	if data, found, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("query cache read failed", zap.String("key", key.String()), zap.Error(err))
	} else if found {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(resource)
			}
			return v, nil
		}
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(resource)
	}

	epoch := c.epoch(resource)
	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("querycache: encode %s: %w", key, err)
		}
		if c.epoch(resource) == epoch {
			if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
				c.logger.Warn("query cache write failed", zap.String("key", key.String()), zap.Error(err))
			}
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(res.([]byte), &v); err != nil {
		return zero, fmt.Errorf("querycache: decode %s: %w", key, err)
	}
	return v, nil
}

// Invalidate drops every entry under each key. It is idempotent.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) error {
	for _, key := range keys {
		c.bump(key.Resource())
		c.group.Forget(key.String())

		n, err := c.store.Invalidate(ctx, key)
		if err != nil {
			return fmt.Errorf("querycache: invalidate %s: %w", key, err)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheInvalidation(key.Resource(), key.Scope())
		}
		c.logger.Debug("query cache invalidated",
			zap.String("key", key.String()),
			zap.Int("entries", n),
		)
	}
	return nil
}

func (c *Cache) epoch(resource string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochs[resource]
}

func (c *Cache) bump(resource string) {
	c.mu.Lock()
	c.epochs[resource]++
	c.mu.Unlock()
}
