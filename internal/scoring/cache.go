package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "ripple:scores:"

// Cache stores whole-graph batch results in redis. Misses and marshal failures
// are treated as absent entries so a broken cache degrades to recomputation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps the redis client with a TTL for batch-result entries.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, raw, c.ttl).Err()
}

func pagerankKey(damping float64, maxIter int, tolerance float64) string {
	return fmt.Sprintf("pagerank:%g:%d:%g", damping, maxIter, tolerance)
}

func predictionKey(k, steps, topN int, lr, lambda float64) string {
	return fmt.Sprintf("prediction:%d:%d:%d:%g:%g", k, steps, topN, lr, lambda)
}
