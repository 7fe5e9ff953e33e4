package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LevelCache is a read-through cache of a product's packaging levels, keyed by
// product id and invalidated on any level write. Cache failures degrade to
// repository reads; they are logged, never surfaced.
type LevelCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLevelCache constructs the cache. A nil client disables caching entirely.
func NewLevelCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LevelCache {
	return &LevelCache{client: client, ttl: ttl, logger: logger}
}

func levelKey(productID int64) string {
	return fmt.Sprintf("catalog:levels:%d", productID)
}

// Get returns cached levels, or ok=false on miss or cache trouble.
func (c *LevelCache) Get(ctx context.Context, productID int64) ([]PackagingLevel, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, levelKey(productID)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("level cache get", slog.Int64("product_id", productID), slog.Any("error", err))
		}
		return nil, false
	}
	var levels []PackagingLevel
	if err := json.Unmarshal(payload, &levels); err != nil {
		if c.logger != nil {
			c.logger.Warn("level cache decode", slog.Int64("product_id", productID), slog.Any("error", err))
		}
		return nil, false
	}
	return levels, true
}

// Set stores levels for the product.
func (c *LevelCache) Set(ctx context.Context, productID int64, levels []PackagingLevel) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(levels)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, levelKey(productID), payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("level cache set", slog.Int64("product_id", productID), slog.Any("error", err))
	}
}

// Invalidate drops the cached levels after a write.
func (c *LevelCache) Invalidate(ctx context.Context, productID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, levelKey(productID)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("level cache invalidate", slog.Int64("product_id", productID), slog.Any("error", err))
	}
}
