package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"market-sentiment-lab/internal/storage/migrations"
	pgstore "market-sentiment-lab/internal/storage/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	var withClickhouse bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx := cmd.Context()

			pool, err := pgstore.NewPoolWithOptions(ctx, cfg.Database.DSN(), pgstore.PoolOptions{
				ConnectTimeout: cfg.Database.ConnectTimeout,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrations.RunPostgresMigrations(pool.Pool, logger); err != nil {
				return err
			}

			if withClickhouse {
				if !cfg.ClickHouse.Enabled() {
					return fmt.Errorf("--clickhouse requires CLICKHOUSE_DSN")
				}
				conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN, logger)
				if err != nil {
					return err
				}
				if err := conn.Close(); err != nil {
					logger.Warn("Failed to close clickhouse connection", zap.Error(err))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withClickhouse, "clickhouse", false, "Also apply ClickHouse analytics migrations")
	return cmd
}

func migrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool, err := pgstore.NewPoolWithOptions(cmd.Context(), cfg.Database.DSN(), pgstore.PoolOptions{
				ConnectTimeout: cfg.Database.ConnectTimeout,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			return migrations.RollbackPostgresMigrations(pool.Pool, steps, logger)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	return cmd
}
