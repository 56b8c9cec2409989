package ratelimit

import (
	"context"
	"time"
)

// Config holds the checkout limit settings.
type Config struct {
	CheckoutLimit  int           `env:"CHECKOUT_RATE_LIMIT" envDefault:"10"`
	CheckoutWindow time.Duration `env:"CHECKOUT_RATE_WINDOW" envDefault:"1m"`
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long to wait from now until the window resets.
// It is zero for allowed results.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	return max(r.ResetAt.Sub(now), 0)
}

// Limiter decides whether key may act now.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Store counts hits per key. Increment adds one hit to the window of key,
// starting a new window of the given length when none is open, and returns
// the hit count and the time left in the window.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}
