package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	insightsKeyPrefix     = "insights"
	insightsScanBatchSize = 100
)

// Params identifies one cached result of an operation. Order does not matter.
type Params map[string]string

// InsightsCache stores JSON-encoded engine results keyed by operation and
// parameters.
type InsightsCache interface {
	Get(ctx context.Context, op string, params Params, dest any) (bool, error)
	Set(ctx context.Context, op string, params Params, value any) error
	InvalidateAll(ctx context.Context) error
}

type redisInsightsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopInsightsCache struct{}

func NewInsightsCache(cfg config.CacheConfig) (InsightsCache, error) {
	if !cfg.Enabled {
		return &noopInsightsCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisInsightsCache(client, ttl), nil
}

// NewRedisInsightsCache wraps an existing client.
func NewRedisInsightsCache(client *redis.Client, ttl time.Duration) InsightsCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisInsightsCache{client: client, ttl: ttl}
}

func NewNoopInsightsCache() InsightsCache {
	return &noopInsightsCache{}
}

func (c *redisInsightsCache) Get(ctx context.Context, op string, params Params, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, buildInsightsKey(op, params)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode %s cache: %w", op, err)
	}
	return true, nil
}

func (c *redisInsightsCache) Set(ctx context.Context, op string, params Params, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s cache: %w", op, err)
	}

	if err := c.client.Set(ctx, buildInsightsKey(op, params), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisInsightsCache) InvalidateAll(ctx context.Context) error {
	return unlinkByPrefix(ctx, c.client, insightsKeyPrefix+":", insightsScanBatchSize)
}

func (n *noopInsightsCache) Get(ctx context.Context, op string, params Params, dest any) (bool, error) {
	return false, nil
}

func (n *noopInsightsCache) Set(ctx context.Context, op string, params Params, value any) error {
	return nil
}

func (n *noopInsightsCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildInsightsKey(op string, params Params) string {
	return fmt.Sprintf("%s:%s:%s", insightsKeyPrefix, op, paramsHash(params))
}

func paramsHash(params Params) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parts = append(parts, strings.ToLower(strings.TrimSpace(k))+"="+strings.ToLower(v))
	}
	if len(parts) == 0 {
		return "default"
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
