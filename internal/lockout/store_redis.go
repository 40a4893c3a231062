package lockout

import (
	"context"
	"time"

	"urban-mobility/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production lockout store. Counter increments are atomic
// via a Lua script; locks are plain keys with TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) IncrFailures(ctx context.Context, key string, window time.Duration) (int64, error) {
	return utils.IncrFailureCount(ctx, s.rdb, key, window)
}

func (s *RedisStore) ClearFailures(ctx context.Context, key string) error {
	return utils.ClearFailureCount(ctx, s.rdb, key)
}

func (s *RedisStore) SetLock(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, "1", ttl).Err()
}

func (s *RedisStore) Locked(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
