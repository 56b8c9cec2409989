// Package pgstore implements entitlement.Store on PostgreSQL.
//
// The schema lives in the embedded migrations directory and is applied with
// pg.Migrate:
//
//	err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, pg.MigrateUp, log)
//
// Entitlements are keyed by user id and written with INSERT ... ON CONFLICT,
// so concurrent reconciliations for one user never produce two rows.
// Deleting an entitlement and its usage counters happens in one transaction.
package pgstore
