package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisStore shares counters between instances. Each window is one key
// incremented with INCR and given its TTL on the first hit.
type RedisStore struct {
	client redisClient
	prefix string
}

// NewRedisStore creates a store whose keys start with "ratelimit:<name>:".
// Panics if client is nil.
func NewRedisStore(client redisClient, name string) *RedisStore {
	if client == nil {
		panic("ratelimit: redis client is required")
	}
	return &RedisStore{client: client, prefix: "ratelimit:" + name + ":"}
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = s.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}
