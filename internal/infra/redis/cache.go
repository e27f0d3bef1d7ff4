package redis

import (
	"context"
	"time"

	"github.com/gdeblander/billing-engine/internal/billing"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ billing.Cache = (*RedisCache)(nil)

// RedisCache memoizes prorata lookups. Failures are logged and swallowed so
// an unavailable Redis never fails an invoice run.
type RedisCache struct {
	client *goredis.Client
	logger *zap.Logger
}

func NewRedisCache(client *goredis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisCache{
		client: client,
		logger: logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}

	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
