package pgstore

import (
	"context"

	"github.com/dmitrymomot/artshare/pkg/pg"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// ListUsage returns the user's counters ordered by resource.
func (s *Store) ListUsage(ctx context.Context, userID string) ([]entitlement.UsageCounter, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, plan_id, resource, used, cycle_start, cycle_end
		FROM usage_counters WHERE user_id = $1 ORDER BY resource`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []entitlement.UsageCounter
	for rows.Next() {
		var c entitlement.UsageCounter
		if err := rows.Scan(&c.UserID, &c.PlanID, &c.Resource, &c.Used, &c.CycleStart, &c.CycleEnd); err != nil {
			return nil, err
		}
		c.CycleStart = c.CycleStart.UTC()
		c.CycleEnd = c.CycleEnd.UTC()
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

// IncrementUsage adds n to the counter described by c in a single
// statement. With a non-negative limit the update is refused when the
// result would exceed it; the returned bool reports whether it applied.
func (s *Store) IncrementUsage(ctx context.Context, c entitlement.UsageCounter, n, limit int64) (int64, bool, error) {
	if limit != entitlement.Unlimited && n > limit {
		used, err := s.currentUsage(ctx, c)
		return used, false, err
	}

	var used int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO usage_counters (user_id, resource, plan_id, used, cycle_start, cycle_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, resource) DO UPDATE SET used = usage_counters.used + EXCLUDED.used
		WHERE $7::bigint < 0 OR usage_counters.used + EXCLUDED.used <= $7::bigint
		RETURNING used`,
		c.UserID, string(c.Resource), c.PlanID, n, c.CycleStart, c.CycleEnd, limit,
	).Scan(&used)
	if pg.IsNotFoundError(err) {
		used, err := s.currentUsage(ctx, c)
		return used, false, err
	}
	if err != nil {
		return 0, false, err
	}
	return used, true, nil
}

func (s *Store) currentUsage(ctx context.Context, c entitlement.UsageCounter) (int64, error) {
	var used int64
	err := s.db.QueryRow(ctx,
		`SELECT used FROM usage_counters WHERE user_id = $1 AND resource = $2`,
		c.UserID, string(c.Resource),
	).Scan(&used)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	return used, err
}
