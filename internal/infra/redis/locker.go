package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdeblander/billing-engine/internal/lock"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 5 * time.Minute

// releaseScript deletes the lock only when it is still owned by the caller,
// so an expired lock re-acquired by another worker is never released here.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*RedisLocker)(nil)

// RedisLocker implements distributed locking with SET NX PX plus an owner
// token checked on release.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *goredis.Client, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &RedisLocker{
		client: client,
		ttl:    ttl,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (lock.ReleaseFunc, bool, error) {
	if l == nil || l.client == nil {
		return nil, false, fmt.Errorf("locker is not initialized")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("lock key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}

	return release, true, nil
}
