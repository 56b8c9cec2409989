package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/artshare/svc/entitlement/pgstore"
	"github.com/dmitrymomot/artshare/svc/plans"
)

func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the plan catalog",
	}

	var file string
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Validate the catalog file and upsert its plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				app, err := loadAppConfig()
				if err != nil {
					return err
				}
				file = app.PlansFile
			}
			catalog, err := plans.Load(file)
			if err != nil {
				return err
			}
			return withDatabase(cmd.Context(), func(ctx context.Context, db database) error {
				if err := pgstore.New(db.pool).UpsertPlans(ctx, catalog); err != nil {
					return err
				}
				db.log.InfoContext(ctx, "plans synced", slog.String("file", file), slog.Int("count", len(catalog)))
				return nil
			})
		},
	}
	sync.Flags().StringVarP(&file, "file", "f", "", "catalog file (defaults to PLANS_FILE)")

	cmd.AddCommand(sync)
	return cmd
}
