package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/usage"
)

var start = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*usage.Service, *entitlement.MemoryStore, *clock.Mock) {
	t.Helper()

	plan := entitlement.Plan{
		ID:                "basic",
		ProviderProductID: "prod_basic",
		Quotas: map[entitlement.Resource]int64{
			"uploads": 3,
			"likes":   entitlement.Unlimited,
			"blogs":   0,
		},
	}
	store := entitlement.NewMemoryStore()
	store.AddUser(entitlement.User{ID: "u1"})
	store.PutPlans(plan)
	require.NoError(t, store.UpsertEntitlement(context.Background(), entitlement.Entitlement{
		UserID: "u1", PlanID: "basic", CycleStartedAt: start, ExpiresAt: start.AddDate(0, 1, 0),
	}))
	require.NoError(t, store.ResetUsageForCycle(context.Background(), "u1", plan, start, start.AddDate(0, 1, 0)))

	c := clock.NewMock(start.Add(time.Hour))
	return usage.NewService(store, usage.WithClock(c)), store, c
}

func TestConsume(t *testing.T) {
	t.Parallel()

	t.Run("within quota", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setup(t)

		info, err := svc.Consume(context.Background(), "u1", "uploads", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), info.Used)
		assert.Equal(t, int64(3), info.Limit)
		assert.Equal(t, 66, info.Percentage())
	})

	t.Run("over quota", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setup(t)

		_, err := svc.Consume(context.Background(), "u1", "uploads", 3)
		require.NoError(t, err)

		info, err := svc.Consume(context.Background(), "u1", "uploads", 1)
		require.ErrorIs(t, err, usage.ErrLimitExceeded)
		assert.Equal(t, int64(3), info.Used)
		assert.False(t, svc.HasQuota(context.Background(), "u1", "uploads"))
	})

	t.Run("zero quota", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setup(t)

		_, err := svc.Consume(context.Background(), "u1", "blogs", 1)
		assert.ErrorIs(t, err, usage.ErrLimitExceeded)
	})

	t.Run("unlimited", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setup(t)

		info, err := svc.Consume(context.Background(), "u1", "likes", 1000)
		require.NoError(t, err)
		assert.Equal(t, -1, info.Percentage())
		assert.True(t, svc.HasQuota(context.Background(), "u1", "likes"))
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setup(t)

		_, err := svc.Consume(context.Background(), "u1", "uploads", 0)
		assert.ErrorIs(t, err, usage.ErrInvalidAmount)

		_, err = svc.Consume(context.Background(), "u1", "videos", 1)
		assert.ErrorIs(t, err, usage.ErrInvalidResource)
	})

	t.Run("no entitlement", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setup(t)

		_, err := svc.Consume(context.Background(), "u2", "uploads", 1)
		assert.ErrorIs(t, err, usage.ErrNoEntitlement)
	})

	t.Run("expired entitlement", func(t *testing.T) {
		t.Parallel()
		svc, _, c := setup(t)
		c.Set(start.AddDate(0, 2, 0))

		_, err := svc.Consume(context.Background(), "u1", "uploads", 1)
		assert.ErrorIs(t, err, usage.ErrEntitlementExpired)
		assert.False(t, svc.HasQuota(context.Background(), "u1", "uploads"))
	})
}

func TestUsage(t *testing.T) {
	t.Parallel()

	svc, _, _ := setup(t)
	_, err := svc.Consume(context.Background(), "u1", "uploads", 1)
	require.NoError(t, err)

	all, err := svc.Usage(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, entitlement.Resource("blogs"), all[0].Resource)
	assert.Equal(t, entitlement.Resource("likes"), all[1].Resource)
	assert.Equal(t, entitlement.Resource("uploads"), all[2].Resource)
	assert.Equal(t, int64(1), all[2].Used)
	assert.Equal(t, start, all[2].CycleStart)
	assert.Equal(t, start.AddDate(0, 1, 0), all[2].CycleEnd)
}
