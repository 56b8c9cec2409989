package entitlement

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and local runs
// without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]User
	plans        map[string]Plan // by id
	entitlements map[string]Entitlement
	usage        map[string]map[Resource]UsageCounter
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]User),
		plans:        make(map[string]Plan),
		entitlements: make(map[string]Entitlement),
		usage:        make(map[string]map[Resource]UsageCounter),
	}
}

// AddUser inserts or replaces a user.
func (m *MemoryStore) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// PutPlans inserts or replaces plans by id.
func (m *MemoryStore) PutPlans(plans ...Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range plans {
		p.Quotas = maps.Clone(p.Quotas)
		m.plans[p.ID] = p
	}
}

func (m *MemoryStore) FindUserByProviderData(_ context.Context, customerID, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if customerID != "" {
		for _, u := range m.users {
			if u.ProviderCustomerID == customerID {
				return &u, nil
			}
		}
	}
	if userID != "" {
		if u, ok := m.users[userID]; ok {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) UpdateUserCustomerID(_ context.Context, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.ProviderCustomerID = customerID
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) FindPlanByProviderProductID(_ context.Context, productID string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.plans {
		if p.ProviderProductID == productID {
			p.Quotas = maps.Clone(p.Quotas)
			return &p, nil
		}
	}
	return nil, ErrPlanNotFound
}

// FindPlan returns a plan by its internal id.
func (m *MemoryStore) FindPlan(_ context.Context, planID string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	p.Quotas = maps.Clone(p.Quotas)
	return &p, nil
}

func (m *MemoryStore) FindEntitlement(_ context.Context, userID string) (*Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entitlements[userID]
	if !ok {
		return nil, ErrEntitlementNotFound
	}
	return &e, nil
}

func (m *MemoryStore) UpsertEntitlement(_ context.Context, e Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entitlements[e.UserID] = e
	return nil
}

func (m *MemoryStore) ResetUsageForCycle(_ context.Context, userID string, plan Plan, cycleStart, cycleEnd time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := make(map[Resource]UsageCounter, len(plan.Quotas))
	for res := range plan.Quotas {
		counters[res] = UsageCounter{
			UserID:     userID,
			PlanID:     plan.ID,
			Resource:   res,
			CycleStart: cycleStart,
			CycleEnd:   cycleEnd,
		}
	}
	m.usage[userID] = counters
	return nil
}

func (m *MemoryStore) DeleteEntitlementAndUsage(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entitlements, userID)
	delete(m.usage, userID)
	return nil
}

func (m *MemoryStore) DeleteEntitlementBySubscriptionID(_ context.Context, subscriptionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, e := range m.entitlements {
		if e.ProviderSubscriptionID == subscriptionID {
			delete(m.entitlements, userID)
			return userID, nil
		}
	}
	return "", ErrEntitlementNotFound
}

// ListUsage returns the user's counters ordered by resource.
func (m *MemoryStore) ListUsage(_ context.Context, userID string) ([]UsageCounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := slices.Collect(maps.Values(m.usage[userID]))
	slices.SortFunc(counters, func(a, b UsageCounter) int {
		switch {
		case a.Resource < b.Resource:
			return -1
		case a.Resource > b.Resource:
			return 1
		}
		return 0
	})
	return counters, nil
}

// IncrementUsage adds n to the counter described by c, creating it when
// missing. With a non-negative limit the increment is refused when the
// result would exceed it; the returned bool reports whether it applied.
func (m *MemoryStore) IncrementUsage(_ context.Context, c UsageCounter, n, limit int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters, ok := m.usage[c.UserID]
	if !ok {
		counters = make(map[Resource]UsageCounter)
		m.usage[c.UserID] = counters
	}
	cur, ok := counters[c.Resource]
	if !ok {
		cur = UsageCounter{
			UserID:     c.UserID,
			PlanID:     c.PlanID,
			Resource:   c.Resource,
			CycleStart: c.CycleStart,
			CycleEnd:   c.CycleEnd,
		}
	}
	if limit != Unlimited && cur.Used+n > limit {
		return cur.Used, false, nil
	}
	cur.Used += n
	counters[c.Resource] = cur
	return cur.Used, true, nil
}
