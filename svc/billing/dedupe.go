package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator runs fn at most once successfully per event id.
// already is true when the event was processed before and fn did not run.
type Deduplicator interface {
	Do(ctx context.Context, eventID string, fn func() error) (already bool, err error)
}

type redisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDeduplicator shares processed event ids between instances.
//
// A short-lived lock key marks an event in flight; a done key with a longer
// TTL marks it processed. The done key is only written after fn succeeds,
// so a failed attempt leaves nothing behind and the provider's retry runs
// again.
type RedisDeduplicator struct {
	client  redisClient
	prefix  string
	doneTTL time.Duration
	lockTTL time.Duration
}

// NewRedisDeduplicator creates a deduplicator. Panics if client is nil.
func NewRedisDeduplicator(client redisClient, doneTTL, lockTTL time.Duration) *RedisDeduplicator {
	if client == nil {
		panic("billing: redis client is required")
	}
	return &RedisDeduplicator{
		client:  client,
		prefix:  "billing:webhook:",
		doneTTL: doneTTL,
		lockTTL: lockTTL,
	}
}

func (d *RedisDeduplicator) Do(ctx context.Context, eventID string, fn func() error) (bool, error) {
	if eventID == "" {
		return false, ErrMissingEventID
	}
	doneKey := d.prefix + "done:" + eventID
	lockKey := d.prefix + "lock:" + eventID

	n, err := d.client.Exists(ctx, doneKey).Result()
	if err != nil {
		return false, errors.Join(ErrDeduplicatorDown, err)
	}
	if n > 0 {
		return true, nil
	}

	acquired, err := d.client.SetNX(ctx, lockKey, time.Now().UTC().Unix(), d.lockTTL).Result()
	if err != nil {
		return false, errors.Join(ErrDeduplicatorDown, err)
	}
	if !acquired {
		if n, err := d.client.Exists(ctx, doneKey).Result(); err == nil && n > 0 {
			return true, nil
		}
		return false, ErrEventInFlight
	}
	defer d.client.Del(context.WithoutCancel(ctx), lockKey)

	if err := fn(); err != nil {
		return false, err
	}

	if err := d.client.Set(ctx, doneKey, time.Now().UTC().Unix(), d.doneTTL).Err(); err != nil {
		return false, errors.Join(ErrDeduplicatorDown, err)
	}
	return false, nil
}

// MemoryDeduplicator keeps processed ids in process memory. It suits a
// single instance and tests.
type MemoryDeduplicator struct {
	mu       sync.Mutex
	done     map[string]struct{}
	inFlight map[string]struct{}
}

func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{
		done:     make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
	}
}

func (d *MemoryDeduplicator) Do(_ context.Context, eventID string, fn func() error) (bool, error) {
	if eventID == "" {
		return false, ErrMissingEventID
	}

	d.mu.Lock()
	if _, ok := d.done[eventID]; ok {
		d.mu.Unlock()
		return true, nil
	}
	if _, ok := d.inFlight[eventID]; ok {
		d.mu.Unlock()
		return false, ErrEventInFlight
	}
	d.inFlight[eventID] = struct{}{}
	d.mu.Unlock()

	err := fn()

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, eventID)
	if err != nil {
		return false, err
	}
	d.done[eventID] = struct{}{}
	return false, nil
}
