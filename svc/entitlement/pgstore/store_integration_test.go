//go:build integration

package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/pg"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/entitlement/pgstore"
)

var (
	cycleStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cycleEnd   = cycleStart.AddDate(0, 1, 0)

	basic = entitlement.Plan{
		ID:                "basic",
		Name:              "Basic",
		ProviderProductID: "prod_basic",
		Quotas:            map[entitlement.Resource]int64{"uploads": 10, "blogs": 2},
	}
)

func setupStore(t *testing.T) (*pgstore.Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("artshare_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: dsn,
		MaxOpenConns:     5,
		MinConns:         1,
		RetryAttempts:    5,
		RetryInterval:    time.Second,
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, pg.MigrateUp, logger.Discard()))

	store := pgstore.New(pool)
	require.NoError(t, store.UpsertPlans(ctx, []entitlement.Plan{basic}))

	_, err = pool.Exec(ctx, `INSERT INTO users (id, email) VALUES ('u1', 'u1@example.com'), ('u2', 'u2@example.com')`)
	require.NoError(t, err)

	return store, pool
}

func TestStore(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		_, err := store.FindUserByProviderData(ctx, "cus_1", "")
		require.ErrorIs(t, err, entitlement.ErrUserNotFound)

		u, err := store.FindUserByProviderData(ctx, "cus_1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		assert.Empty(t, u.ProviderCustomerID)

		require.NoError(t, store.UpdateUserCustomerID(ctx, "u1", "cus_1"))
		u, err = store.FindUserByProviderData(ctx, "cus_1", "")
		require.NoError(t, err)
		assert.Equal(t, "cus_1", u.ProviderCustomerID)

		assert.ErrorIs(t, store.UpdateUserCustomerID(ctx, "ghost", "cus_x"), entitlement.ErrUserNotFound)
	})

	t.Run("plans", func(t *testing.T) {
		p, err := store.FindPlanByProviderProductID(ctx, "prod_basic")
		require.NoError(t, err)
		assert.Equal(t, basic.Quotas, p.Quotas)

		_, err = store.FindPlan(ctx, "missing")
		assert.ErrorIs(t, err, entitlement.ErrPlanNotFound)
	})

	t.Run("entitlement upsert keeps one row per user", func(t *testing.T) {
		ent := entitlement.Entitlement{
			UserID: "u1", PlanID: "basic", ExpiresAt: cycleEnd, CycleStartedAt: cycleStart,
			ProviderSubscriptionID: "sub_1", ProviderPriceID: "price_1", ProviderCustomerID: "cus_1",
			EventAt: cycleStart,
		}
		require.NoError(t, store.UpsertEntitlement(ctx, ent))

		ent.ExpiresAt = cycleEnd.AddDate(0, 1, 0)
		ent.CancelAtPeriodEnd = true
		require.NoError(t, store.UpsertEntitlement(ctx, ent))

		got, err := store.FindEntitlement(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, ent.ExpiresAt, got.ExpiresAt)
		assert.True(t, got.CancelAtPeriodEnd)
		assert.Equal(t, "sub_1", got.ProviderSubscriptionID)
	})

	t.Run("usage reset and increment", func(t *testing.T) {
		require.NoError(t, store.ResetUsageForCycle(ctx, "u1", basic, cycleStart, cycleEnd))

		c := entitlement.UsageCounter{UserID: "u1", PlanID: "basic", Resource: "blogs", CycleStart: cycleStart, CycleEnd: cycleEnd}
		used, ok, err := store.IncrementUsage(ctx, c, 2, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(2), used)

		used, ok, err = store.IncrementUsage(ctx, c, 1, 2)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(2), used)

		counters, err := store.ListUsage(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, counters, 2)
		assert.Equal(t, entitlement.Resource("blogs"), counters[0].Resource)
		assert.Equal(t, cycleEnd, counters[0].CycleEnd)
	})

	t.Run("delete by subscription id", func(t *testing.T) {
		userID, err := store.DeleteEntitlementBySubscriptionID(ctx, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)

		_, err = store.DeleteEntitlementBySubscriptionID(ctx, "sub_1")
		assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)

		require.NoError(t, store.DeleteEntitlementAndUsage(ctx, "u1"))
		counters, err := store.ListUsage(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, counters)
	})
}

type staticProvider struct {
	sub *entitlement.Subscription
}

func (p staticProvider) RetrieveSubscription(context.Context, string) (*entitlement.Subscription, error) {
	return p.sub, nil
}

func (p staticProvider) RetrievePrice(context.Context, string) (*entitlement.Price, error) {
	return &entitlement.Price{ID: "price_1", ProductID: "prod_basic", Recurring: true, Interval: entitlement.IntervalMonth}, nil
}

func TestStore_Reconcile(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	sub := &entitlement.Subscription{
		ID:                 "sub_2",
		CustomerID:         "cus_2",
		Status:             entitlement.StatusActive,
		Items:              []entitlement.SubscriptionItem{{PriceID: "price_1", ProductID: "prod_basic"}},
		CurrentPeriodStart: &cycleStart,
		CurrentPeriodEnd:   &cycleEnd,
	}
	svc := entitlement.NewService(store, staticProvider{sub: sub}, entitlement.WithLogger(logger.Discard()))

	ev := entitlement.Event{
		Source: entitlement.SourceCheckoutCompleted, ID: "evt_1",
		CustomerID: "cus_2", SubscriptionID: "sub_2", UserRef: "u2", OccurredAt: cycleStart,
	}
	res, err := svc.Reconcile(ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.UsageReset)

	res, err = svc.Reconcile(ctx, ev)
	require.NoError(t, err)
	assert.False(t, res.UsageReset)

	ent, err := store.FindEntitlement(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, cycleEnd, ent.ExpiresAt)

	_, err = svc.ReconcileCancellation(ctx, entitlement.Subscription{ID: "sub_2", CustomerID: "cus_2"}, entitlement.Delivery{EventID: "evt_2"})
	require.NoError(t, err)

	_, err = store.FindEntitlement(ctx, "u2")
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
}
