package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/rota/internal/adapters/database"
	"github.com/okian/rota/internal/config"
	"github.com/okian/rota/pkg/logger"

	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("database_url is not set")

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema to the configured database",
		Long: `Applies every embedded migration for the driver behind ROTA_DATABASE_URL.
PostgreSQL DSNs and SQLite paths are both accepted. Migrations are
idempotent, so running the command twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer syncLogger()
			return migrate(cmd.Context(), cfg, l)
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	if cfg.DatabaseURL == "" {
		return errNoDatabase
	}

	conn, err := database.Open(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	if err := database.Migrate(ctx, conn); err != nil {
		l.Error(ctx, "migration failed", logger.Error(err))
		return err
	}
	l.Info(ctx, "schema is up to date", logger.String("driver", conn.Driver().String()))
	return nil
}
