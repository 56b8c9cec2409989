package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/artshare/pkg/clock"
)

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	clock   clock.Clock
}

// NewMemoryStore creates a store. A nil clock means the system clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryStore{windows: make(map[string]*memoryWindow), clock: c}
}

// Increment implements Store. Expired windows are dropped lazily.
func (m *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}
