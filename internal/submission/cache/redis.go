package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"claimintake/internal/submission"
)

const (
	listKey  = "claimintake:submissions:list"
	statsKey = "claimintake:submissions:stats"
)

// RedisCache is the shared-cache variant for multi-instance deployments.
// It is strictly best-effort: any Redis failure is logged and reported as
// a miss so a degraded cache never fails a request.
type RedisCache struct {
	client   *redis.Client
	listTTL  time.Duration
	statsTTL time.Duration
	logger   *slog.Logger
}

func NewRedisCache(client *redis.Client, listTTL, statsTTL time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client:   client,
		listTTL:  listTTL,
		statsTTL: statsTTL,
		logger:   logger,
	}
}

func (c *RedisCache) GetList(ctx context.Context) (submission.PagedResult, bool) {
	var result submission.PagedResult
	if !c.get(ctx, listKey, &result) {
		return submission.PagedResult{}, false
	}
	return result, true
}

func (c *RedisCache) SetList(ctx context.Context, result submission.PagedResult) {
	c.set(ctx, listKey, result, c.listTTL)
}

func (c *RedisCache) GetStats(ctx context.Context) (submission.StatsSnapshot, bool) {
	var snapshot submission.StatsSnapshot
	if !c.get(ctx, statsKey, &snapshot) {
		return submission.StatsSnapshot{}, false
	}
	return snapshot, true
}

func (c *RedisCache) SetStats(ctx context.Context, snapshot submission.StatsSnapshot) {
	c.set(ctx, statsKey, snapshot, c.statsTTL)
}

func (c *RedisCache) InvalidateAll(ctx context.Context) {
	if err := c.client.Del(ctx, listKey, statsKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed",
			"error", err.Error(),
		)
	}
}

func (c *RedisCache) get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err.Error())
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.WarnContext(ctx, "cache entry corrupt, treating as miss", "key", key, "error", err.Error())
		return false
	}
	return true
}

func (c *RedisCache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "cache marshal failed", "key", key, "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err.Error())
	}
}
