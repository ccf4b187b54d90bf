package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"market-sentiment-lab/internal/dedup"
	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// Stager imports raw rows into the staging tables, skipping rows already
// staged: quotes by (ticker, day), posts by uri.
type Stager struct {
	quoteStore storage.StagingQuoteStore
	postStore  storage.StagingPostStore
	batchSize  int
	logger     *zap.Logger
}

// StagerOptions contains configuration for creating a Stager.
type StagerOptions struct {
	QuoteStore storage.StagingQuoteStore
	PostStore  storage.StagingPostStore
	BatchSize  int
	Logger     *zap.Logger
}

// NewStager creates a new Stager with the provided stores.
func NewStager(opts StagerOptions) *Stager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{
		quoteStore: opts.QuoteStore,
		postStore:  opts.PostStore,
		batchSize:  opts.BatchSize,
		logger:     logger,
	}
}

// StageQuotes writes raw quotes to staging. Rows without ticker or date
// are skipped as malformed.
func (s *Stager) StageQuotes(ctx context.Context, rows []*domain.RawQuote) (*dedup.Result[domain.RawQuoteKey], error) {
	if s.quoteStore == nil {
		return nil, fmt.Errorf("stage quotes: no staging quote store configured")
	}

	w := dedup.NewWriter(dedup.Options[*domain.RawQuote, domain.RawQuoteKey]{
		Name: "staging_quotes",
		Sink: s.quoteStore,
		Key:  (*domain.RawQuote).Key,
		Validate: func(q *domain.RawQuote) error {
			if q.Ticker == "" {
				return malformed("quote", "", "ticker", "is empty")
			}
			if q.Date == nil {
				return malformed("quote", q.Ticker, "date", "is missing")
			}
			return nil
		},
		LoadKeys: func(ctx context.Context, _ []*domain.RawQuote) ([]domain.RawQuoteKey, error) {
			return s.quoteStore.LoadKeys(ctx)
		},
		BatchSize: s.batchSize,
		Logger:    s.logger,
	})

	res, err := w.Write(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("stage quotes: %w", err)
	}
	s.logger.Info("Staged quotes",
		zap.Int("rows", len(rows)),
		zap.Int("persisted", res.Persisted),
		zap.Int("skipped_duplicate", res.SkippedDuplicate),
		zap.Int("skipped_malformed", res.SkippedMalformed),
		zap.Int("failed", res.Failed))
	return res, nil
}

// StagePosts writes raw posts to staging. Rows without uri are skipped as malformed.
func (s *Stager) StagePosts(ctx context.Context, rows []*domain.RawPost) (*dedup.Result[string], error) {
	if s.postStore == nil {
		return nil, fmt.Errorf("stage posts: no staging post store configured")
	}

	w := dedup.NewWriter(dedup.Options[*domain.RawPost, string]{
		Name: "staging_posts",
		Sink: s.postStore,
		Key:  func(p *domain.RawPost) string { return p.URI },
		Validate: func(p *domain.RawPost) error {
			if p.URI == "" {
				return malformed("post", "", "uri", "is empty")
			}
			if p.CreatedAt == nil {
				return malformed("post", p.URI, "created_at", "is missing")
			}
			return nil
		},
		LoadKeys: func(ctx context.Context, _ []*domain.RawPost) ([]string, error) {
			return s.postStore.LoadURIs(ctx)
		},
		BatchSize: s.batchSize,
		Logger:    s.logger,
	})

	res, err := w.Write(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("stage posts: %w", err)
	}
	s.logger.Info("Staged posts",
		zap.Int("rows", len(rows)),
		zap.Int("persisted", res.Persisted),
		zap.Int("skipped_duplicate", res.SkippedDuplicate),
		zap.Int("skipped_malformed", res.SkippedMalformed),
		zap.Int("failed", res.Failed))
	return res, nil
}
