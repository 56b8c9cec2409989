package pgstore

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/artshare/pkg/pg"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// Migrations holds the goose SQL files of the billing schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	pg.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL entitlement store.
type Store struct {
	db DB
}

var _ entitlement.Store = (*Store)(nil)

// New creates a Store. Panics if db is nil.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Store{db: db}
}

const userColumns = `id, email, COALESCE(provider_customer_id, '')`

func (s *Store) FindUserByProviderData(ctx context.Context, customerID, userID string) (*entitlement.User, error) {
	if customerID != "" {
		u, err := s.scanUser(s.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE provider_customer_id = $1`, customerID))
		if err == nil || !errors.Is(err, entitlement.ErrUserNotFound) {
			return u, err
		}
	}
	if userID != "" {
		return s.scanUser(s.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	}
	return nil, entitlement.ErrUserNotFound
}

func (s *Store) scanUser(row pgx.Row) (*entitlement.User, error) {
	var u entitlement.User
	if err := row.Scan(&u.ID, &u.Email, &u.ProviderCustomerID); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, entitlement.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUserCustomerID(ctx context.Context, userID, customerID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET provider_customer_id = $2 WHERE id = $1`, userID, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entitlement.ErrUserNotFound
	}
	return nil
}

const planColumns = `id, name, provider_product_id, quotas`

func (s *Store) FindPlanByProviderProductID(ctx context.Context, productID string) (*entitlement.Plan, error) {
	return scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE provider_product_id = $1`, productID))
}

// FindPlan returns a plan by its internal id.
func (s *Store) FindPlan(ctx context.Context, planID string) (*entitlement.Plan, error) {
	return scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, planID))
}

func scanPlan(row pgx.Row) (*entitlement.Plan, error) {
	var p entitlement.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.ProviderProductID, &p.Quotas); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, entitlement.ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPlans writes the catalog in one transaction.
func (s *Store) UpsertPlans(ctx context.Context, plans []entitlement.Plan) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, p := range plans {
			quotas := p.Quotas
			if quotas == nil {
				quotas = map[entitlement.Resource]int64{}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO plans (id, name, provider_product_id, quotas, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					provider_product_id = EXCLUDED.provider_product_id,
					quotas = EXCLUDED.quotas,
					updated_at = now()`,
				p.ID, p.Name, p.ProviderProductID, quotas,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) FindEntitlement(ctx context.Context, userID string) (*entitlement.Entitlement, error) {
	var e entitlement.Entitlement
	err := s.db.QueryRow(ctx, `
		SELECT user_id, plan_id, expires_at, cycle_started_at, provider_subscription_id,
			provider_price_id, provider_customer_id, cancel_at_period_end, event_at, updated_at
		FROM entitlements WHERE user_id = $1`, userID,
	).Scan(
		&e.UserID, &e.PlanID, &e.ExpiresAt, &e.CycleStartedAt, &e.ProviderSubscriptionID,
		&e.ProviderPriceID, &e.ProviderCustomerID, &e.CancelAtPeriodEnd, &e.EventAt, &e.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, entitlement.ErrEntitlementNotFound
		}
		return nil, err
	}
	e.ExpiresAt = e.ExpiresAt.UTC()
	e.CycleStartedAt = e.CycleStartedAt.UTC()
	e.EventAt = e.EventAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func (s *Store) UpsertEntitlement(ctx context.Context, e entitlement.Entitlement) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO entitlements (user_id, plan_id, expires_at, cycle_started_at, provider_subscription_id,
			provider_price_id, provider_customer_id, cancel_at_period_end, event_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			expires_at = EXCLUDED.expires_at,
			cycle_started_at = EXCLUDED.cycle_started_at,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			provider_price_id = EXCLUDED.provider_price_id,
			provider_customer_id = EXCLUDED.provider_customer_id,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			event_at = EXCLUDED.event_at,
			updated_at = EXCLUDED.updated_at`,
		e.UserID, e.PlanID, e.ExpiresAt, e.CycleStartedAt, e.ProviderSubscriptionID,
		e.ProviderPriceID, e.ProviderCustomerID, e.CancelAtPeriodEnd, nonZero(e.EventAt), nonZero(e.UpdatedAt),
	)
	return err
}

func (s *Store) ResetUsageForCycle(ctx context.Context, userID string, plan entitlement.Plan, cycleStart, cycleEnd time.Time) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM usage_counters WHERE user_id = $1`, userID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for res := range plan.Quotas {
			batch.Queue(`
				INSERT INTO usage_counters (user_id, resource, plan_id, used, cycle_start, cycle_end)
				VALUES ($1, $2, $3, 0, $4, $5)`,
				userID, string(res), plan.ID, cycleStart, cycleEnd)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Store) DeleteEntitlementAndUsage(ctx context.Context, userID string) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM usage_counters WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM entitlements WHERE user_id = $1`, userID)
		return err
	})
}

func (s *Store) DeleteEntitlementBySubscriptionID(ctx context.Context, subscriptionID string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx,
		`DELETE FROM entitlements WHERE provider_subscription_id = $1 RETURNING user_id`, subscriptionID,
	).Scan(&userID)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return "", entitlement.ErrEntitlementNotFound
		}
		return "", err
	}
	return userID, nil
}

func nonZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
