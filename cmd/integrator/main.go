// Package main is the entry point for the integrator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"market-sentiment-lab/internal/config"
	"market-sentiment-lab/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "integrator",
		Short:         "Incremental integration of staged quotes and posts",
		Long:          `Integrator merges staged market quotes and social posts into the companies, quotes, users and notes tables without duplicating records across runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (default: environment only)")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(verifyCmd())

	return cmd
}

// setup loads configuration and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
