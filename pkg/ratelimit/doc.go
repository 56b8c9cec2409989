// Package ratelimit caps how often a key may perform an action within a
// fixed window.
//
// Counters live in a Store. RedisStore shares them between instances and
// MemoryStore serves tests and single-instance runs. Middleware applies a
// Limiter to HTTP routes and fails open when the store is unavailable:
//
//	limiter, err := ratelimit.NewFixedWindow(ratelimit.NewRedisStore(rdb, "checkout"), 10, time.Minute)
//	r.With(ratelimit.Middleware(limiter, ratelimit.ByUser)).Post("/checkout", h)
package ratelimit
