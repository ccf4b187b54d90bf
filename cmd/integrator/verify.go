package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pgstore "market-sentiment-lab/internal/storage/postgres"
	"market-sentiment-lab/internal/verification"
)

func verifyCmd() *cobra.Command {
	var ticker string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay stored percent changes and report divergences",
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

			v := verification.NewQuoteVerifier(pgstore.NewCompanyStore(pool), pgstore.NewQuoteStore(pool))

			var results []verification.VerificationResult
			if ticker != "" {
				res, err := v.VerifyCompany(ctx, ticker)
				if err != nil {
					return err
				}
				results = append(results, *res)
			} else {
				report, err := v.VerifyAll(ctx)
				if err != nil {
					return err
				}
				results = report.Results
			}

			divergent := 0
			for _, res := range results {
				if res.Match {
					continue
				}
				divergent++
				fmt.Printf("%s: %d of %d quotes diverge\n", res.Ticker, len(res.Divergences), res.Quotes)
				for _, d := range res.Divergences {
					fmt.Printf("  %s\n", d)
				}
			}
			fmt.Printf("verified %d series, %d divergent\n", len(results), divergent)
			if divergent > 0 {
				return fmt.Errorf("%d divergent series", divergent)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "Verify a single ticker")
	return cmd
}
