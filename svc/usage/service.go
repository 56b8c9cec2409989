package usage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// Store is the part of the entitlement storage the quota checks need.
// Both entitlement.MemoryStore and pgstore.Store implement it.
type Store interface {
	FindEntitlement(ctx context.Context, userID string) (*entitlement.Entitlement, error)
	FindPlan(ctx context.Context, planID string) (*entitlement.Plan, error)
	ListUsage(ctx context.Context, userID string) ([]entitlement.UsageCounter, error)
	IncrementUsage(ctx context.Context, c entitlement.UsageCounter, n, limit int64) (int64, bool, error)
}

// Info is the usage of one resource in the current cycle.
type Info struct {
	Resource   entitlement.Resource `json:"resource"`
	Used       int64                `json:"used"`
	Limit      int64                `json:"limit"`
	CycleStart time.Time            `json:"cycle_start"`
	CycleEnd   time.Time            `json:"cycle_end"`
}

// Percentage returns usage as 0-100, or -1 for unlimited quotas.
func (i Info) Percentage() int {
	if i.Limit == entitlement.Unlimited {
		return -1
	}
	if i.Limit == 0 {
		return 100
	}
	return min(int((i.Used*100)/i.Limit), 100)
}

// Service checks and consumes quotas.
type Service struct {
	store Store
	clock clock.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewService creates a Service. Panics if store is nil.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("usage: store is required")
	}
	s := &Service{store: store, clock: clock.System{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consume records n units of res against the user's current cycle.
func (s *Service) Consume(ctx context.Context, userID string, res entitlement.Resource, n int64) (Info, error) {
	if n <= 0 {
		return Info{}, ErrInvalidAmount
	}

	ent, plan, err := s.current(ctx, userID)
	if err != nil {
		return Info{}, err
	}

	limit, ok := plan.Quotas[res]
	if !ok {
		return Info{}, ErrInvalidResource
	}

	info := Info{Resource: res, Limit: limit, CycleStart: ent.CycleStartedAt, CycleEnd: ent.ExpiresAt}
	used, applied, err := s.store.IncrementUsage(ctx, entitlement.UsageCounter{
		UserID:     userID,
		PlanID:     plan.ID,
		Resource:   res,
		CycleStart: ent.CycleStartedAt,
		CycleEnd:   ent.ExpiresAt,
	}, n, limit)
	if err != nil {
		return info, errors.Join(ErrFailedToUpdateUsage, err)
	}
	info.Used = used
	if !applied {
		return info, ErrLimitExceeded
	}
	return info, nil
}

// HasQuota reports whether one more unit of res fits in the current cycle.
func (s *Service) HasQuota(ctx context.Context, userID string, res entitlement.Resource) bool {
	all, err := s.Usage(ctx, userID)
	if err != nil {
		return false
	}
	for _, info := range all {
		if info.Resource == res {
			return info.Limit == entitlement.Unlimited || info.Used < info.Limit
		}
	}
	return false
}

// Usage lists every quota of the user's plan with its current counter,
// ordered by resource.
func (s *Service) Usage(ctx context.Context, userID string) ([]Info, error) {
	ent, plan, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	counters, err := s.store.ListUsage(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadUsage, err)
	}
	used := make(map[entitlement.Resource]int64, len(counters))
	for _, c := range counters {
		if c.PlanID == plan.ID {
			used[c.Resource] = c.Used
		}
	}

	resources := slices.Sorted(maps.Keys(plan.Quotas))
	result := make([]Info, 0, len(resources))
	for _, res := range resources {
		result = append(result, Info{
			Resource:   res,
			Used:       used[res],
			Limit:      plan.Quotas[res],
			CycleStart: ent.CycleStartedAt,
			CycleEnd:   ent.ExpiresAt,
		})
	}
	return result, nil
}

func (s *Service) current(ctx context.Context, userID string) (*entitlement.Entitlement, *entitlement.Plan, error) {
	ent, err := s.store.FindEntitlement(ctx, userID)
	if errors.Is(err, entitlement.ErrEntitlementNotFound) {
		return nil, nil, ErrNoEntitlement
	}
	if err != nil {
		return nil, nil, errors.Join(ErrFailedToReadUsage, err)
	}
	if !ent.IsActive(s.clock.Now()) {
		return nil, nil, ErrEntitlementExpired
	}

	plan, err := s.store.FindPlan(ctx, ent.PlanID)
	if err != nil {
		return nil, nil, errors.Join(ErrFailedToReadUsage, err)
	}
	return ent, plan, nil
}
