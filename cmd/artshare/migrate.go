package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/artshare/pkg/config"
	"github.com/dmitrymomot/artshare/pkg/pg"
	"github.com/dmitrymomot/artshare/svc/entitlement/pgstore"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, roll back or list database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pg.MigrateUp), string(pg.MigrateDown), string(pg.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, db database) error {
				return pg.Migrate(ctx, db.pool, db.cfg, pgstore.Migrations, pgstore.MigrationsDir, pg.MigrateCommand(args[0]), db.log)
			})
		},
	}
}

type database struct {
	pool *pgxpool.Pool
	cfg  pg.Config
	log  *slog.Logger
}

// withDatabase connects for a one-off command and closes the pool afterwards.
func withDatabase(ctx context.Context, fn func(ctx context.Context, db database) error) error {
	app, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := newLogger(app)

	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, database{pool: pool, cfg: cfg, log: log})
}
