package entitlement_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// MockProvider is a mock implementation of entitlement.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) RetrieveSubscription(ctx context.Context, id string) (*entitlement.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

func (m *MockProvider) RetrievePrice(ctx context.Context, id string) (*entitlement.Price, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Price), args.Error(1)
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []entitlement.Notification
	err  error
}

func (r *recordingNotifier) SendToUser(_ context.Context, _ string, n entitlement.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) kinds() []entitlement.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]entitlement.NotificationKind, 0, len(r.sent))
	for _, n := range r.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// countingStore counts usage resets on top of MemoryStore.
type countingStore struct {
	*entitlement.MemoryStore
	mu     sync.Mutex
	resets int
}

func (c *countingStore) ResetUsageForCycle(ctx context.Context, userID string, plan entitlement.Plan, start, end time.Time) error {
	c.mu.Lock()
	c.resets++
	c.mu.Unlock()
	return c.MemoryStore.ResetUsageForCycle(ctx, userID, plan, start, end)
}

func (c *countingStore) resetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}
