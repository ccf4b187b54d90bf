package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"market-sentiment-lab/internal/config"
	"market-sentiment-lab/internal/ingestion"
	"market-sentiment-lab/internal/observability"
	"market-sentiment-lab/internal/orchestrator"
	"market-sentiment-lab/internal/sentiment"
	"market-sentiment-lab/internal/storage"
	chstore "market-sentiment-lab/internal/storage/clickhouse"
	pgstore "market-sentiment-lab/internal/storage/postgres"
)

type runFlags struct {
	metricsAddr string
	quotesCSV   string
	postsCSV    string
}

func runCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one integration run",
		Long: `Execute one integration run: the quotes branch, then the notes branch.

Only records newer than the latest integrated timestamp of each target
table are considered. The run holds a PostgreSQL advisory lock and fails
fast when another run holds it.

Sources default to the staging_quotes and staging_posts tables. Use
--quotes-csv or --posts-csv to read a branch straight from a CSV export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if flags.metricsAddr == "" {
				flags.metricsAddr = cfg.Metrics.Addr
			}
			return runIntegration(cmd.Context(), cfg, logger, flags)
		},
	}

	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (default: metrics.addr)")
	cmd.Flags().StringVar(&flags.quotesCSV, "quotes-csv", "", "Read quotes from a CSV file instead of staging_quotes")
	cmd.Flags().StringVar(&flags.postsCSV, "posts-csv", "", "Read posts from a CSV file instead of staging_posts")

	return cmd
}

func runIntegration(ctx context.Context, cfg *config.Config, logger *zap.Logger, flags runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Integrator.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Integrator.RunTimeout)
		defer cancel()
	}

	pool, err := pgstore.NewPoolWithOptions(ctx, cfg.Database.DSN(), pgstore.PoolOptions{
		MaxConns:       cfg.Database.MaxConnections,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	lock, err := pgstore.AcquireRunLock(ctx, pool, cfg.Integrator.LockKey)
	if errors.Is(err, storage.ErrLocked) {
		return fmt.Errorf("another integrator run is in progress: %w", err)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics("", nil)
	if flags.metricsAddr != "" {
		srv := startMetricsServer(flags.metricsAddr, metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := orchestrator.Options{
		Companies:   pgstore.NewCompanyStore(pool),
		Users:       pgstore.NewUserStore(pool),
		Quotes:      pgstore.NewQuoteStore(pool),
		Notes:       pgstore.NewNoteStore(pool),
		Watermarks:  pgstore.NewWatermarkStore(pool),
		QuoteSource: ingestion.NewStagingQuoteSource(pgstore.NewStagingQuoteStore(pool)),
		PostSource:  ingestion.NewStagingPostSource(pgstore.NewStagingPostStore(pool)),
		Metrics:     metrics,
		BatchSize:   cfg.Integrator.BatchSize,
		FlushEvery:  cfg.Integrator.FlushEvery,
		Retry: ingestion.RetryPolicy{
			InitialInterval: ingestion.DefaultRetryPolicy.InitialInterval,
			MaxInterval:     ingestion.DefaultRetryPolicy.MaxInterval,
			MaxElapsedTime:  cfg.Integrator.FetchRetryTime,
		},
		Logger: logger,
	}
	if flags.quotesCSV != "" {
		opts.QuoteSource = &ingestion.CSVQuoteSource{Path: flags.quotesCSV}
	}
	if flags.postsCSV != "" {
		opts.PostSource = &ingestion.CSVPostSource{Path: flags.postsCSV}
	}

	if cfg.ClickHouse.Enabled() {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			logger.Warn("ClickHouse unavailable, analytics mirror disabled", zap.Error(err))
		} else {
			defer conn.Close()
			opts.Series = chstore.NewQuoteSeriesStore(conn)
		}
	}

	if cfg.Sentiment.Enabled() {
		scorer, err := sentiment.NewOpenAIScorer(sentiment.OpenAIConfig{
			Endpoint: cfg.Sentiment.Endpoint,
			Model:    cfg.Sentiment.Model,
			APIKey:   cfg.Sentiment.APIKey,
		}, logger)
		if err != nil {
			return fmt.Errorf("create sentiment scorer: %w", err)
		}
		opts.Scorer = scorer
	}

	integrator, err := orchestrator.New(opts)
	if err != nil {
		return err
	}

	report, err := integrator.Run(ctx)
	if report != nil {
		for _, b := range report.Branches() {
			fmt.Printf("%-6s state=%s persisted=%d skipped_duplicate=%d skipped_malformed=%d failed=%d\n",
				b.Branch, b.State, b.Persisted, b.SkippedDuplicate, b.SkippedMalformed+b.Malformed, b.Failed)
		}
	}
	return err
}

func startMetricsServer(addr string, metrics *observability.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}
