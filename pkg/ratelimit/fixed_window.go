package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/artshare/pkg/clock"
)

// FixedWindow allows up to limit hits per key in each window.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
	clock  clock.Clock
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the clock used to compute ResetAt.
func WithClock(c clock.Clock) Option {
	return func(fw *FixedWindow) {
		if c != nil {
			fw.clock = c
		}
	}
}

// NewFixedWindow creates a limiter.
func NewFixedWindow(store Store, limit int, window time.Duration, opts ...Option) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	fw := &FixedWindow{store: store, limit: limit, window: window, clock: clock.System{}}
	for _, opt := range opts {
		opt(fw)
	}
	return fw, nil
}

// Allow records one hit for key.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrKeyRequired
	}

	count, ttl, err := fw.store.Increment(ctx, key, fw.window)
	if err != nil {
		return Result{}, errors.Join(ErrStoreFailed, err)
	}
	if ttl <= 0 {
		ttl = fw.window
	}

	return Result{
		Allowed:   count <= int64(fw.limit),
		Limit:     fw.limit,
		Remaining: max(fw.limit-int(count), 0),
		ResetAt:   fw.clock.Now().Add(ttl),
	}, nil
}
