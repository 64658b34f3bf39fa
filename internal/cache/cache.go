// Package cache stores evaluation results in Redis so repeated dashboard
// requests for the same table and filters skip the pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// DefaultTTL is how long a cached result lives.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "churn:"

// Cache is a JSON result cache backed by Redis. A nil *Cache is valid and
// caches nothing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return New(client, ttl, logger), nil
}

// EvalKey identifies one evaluation. The table fingerprint is part of the
// key, so a reloaded table never serves stale entries.
func EvalKey(fingerprint string, model models.ModelVariant, filters models.FilterSpec, topN int, mode models.RankMode, includeRows bool) string {
	return key("eval", fingerprint, fmt.Sprintf("%s|%s|%d|%s|%t", model, filters.Key(), topN, mode, includeRows))
}

// CompareKey identifies one model comparison.
func CompareKey(fingerprint string, filters models.FilterSpec) string {
	return key("compare", fingerprint, filters.Key())
}

func key(kind, fingerprint, params string) string {
	sum := sha256.Sum256([]byte(params))
	fp := fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}
	return keyPrefix + kind + ":" + fp + ":" + hex.EncodeToString(sum[:16])
}

// Get decodes the value stored at key into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return true, nil
}

// Set stores value at key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Remember returns the cached value for key or computes and stores it.
// Redis failures are logged and fall through to compute; compute errors are
// never cached.
func Remember[T any](ctx context.Context, c *Cache, key string, compute func() (T, error)) (T, error) {
	if c == nil {
		return compute()
	}

	var cached T
	hit, err := c.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if hit {
		return cached, nil
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}
