// Package main is the entry point for the staging import CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"market-sentiment-lab/internal/config"
	"market-sentiment-lab/internal/ingestion"
	"market-sentiment-lab/internal/logging"
	pgstore "market-sentiment-lab/internal/storage/postgres"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stage",
		Short:         "Import CSV exports into the staging tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (default: environment only)")
	cmd.PersistentFlags().Int("batch-size", 0, "Rows per insert batch (default: integrator.batch_size)")

	cmd.AddCommand(&cobra.Command{
		Use:   "quotes <csv>",
		Short: "Stage a quotes CSV into staging_quotes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return stage(cmd, args[0], stageQuotes)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "posts <csv>",
		Short: "Stage a posts CSV into staging_posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return stage(cmd, args[0], stagePosts)
		},
	})

	return cmd
}

type stageFunc func(cmd *cobra.Command, stager *ingestion.Stager, f *os.File, logger *zap.Logger) error

func stage(cmd *cobra.Command, path string, fn stageFunc) error {
	configPath, _ := cmd.Flags().GetString("config")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if batchSize <= 0 {
		batchSize = cfg.Integrator.BatchSize
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pool, err := pgstore.NewPoolWithOptions(cmd.Context(), cfg.Database.DSN(), pgstore.PoolOptions{
		MaxConns:       cfg.Database.MaxConnections,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	stager := ingestion.NewStager(ingestion.StagerOptions{
		QuoteStore: pgstore.NewStagingQuoteStore(pool),
		PostStore:  pgstore.NewStagingPostStore(pool),
		BatchSize:  batchSize,
		Logger:     logger,
	})
	return fn(cmd, stager, f, logger.With(zap.String("file", path)))
}

func stageQuotes(cmd *cobra.Command, stager *ingestion.Stager, f *os.File, logger *zap.Logger) error {
	rows, rowErrs, err := ingestion.ReadQuotesCSV(f)
	if err != nil {
		return err
	}
	logRowErrors(logger, rowErrs)

	res, err := stager.StageQuotes(cmd.Context(), rows)
	if err != nil {
		return err
	}
	fmt.Printf("quotes: read=%d rejected=%d staged=%d duplicate=%d malformed=%d failed=%d\n",
		len(rows), len(rowErrs), res.Persisted, res.SkippedDuplicate, res.SkippedMalformed, res.Failed)
	return nil
}

func stagePosts(cmd *cobra.Command, stager *ingestion.Stager, f *os.File, logger *zap.Logger) error {
	rows, rowErrs, err := ingestion.ReadPostsCSV(f)
	if err != nil {
		return err
	}
	logRowErrors(logger, rowErrs)

	res, err := stager.StagePosts(cmd.Context(), rows)
	if err != nil {
		return err
	}
	fmt.Printf("posts: read=%d rejected=%d staged=%d duplicate=%d malformed=%d failed=%d\n",
		len(rows), len(rowErrs), res.Persisted, res.SkippedDuplicate, res.SkippedMalformed, res.Failed)
	return nil
}

func logRowErrors(logger *zap.Logger, errs []error) {
	for _, err := range errs {
		logger.Warn("Skipping CSV row", zap.Error(err))
	}
}
