package ingestion

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"market-sentiment-lab/internal/domain"
)

// RetryPolicy bounds the retries of a source fetch.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy retries for up to 30 seconds.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsedTime:  30 * time.Second,
}

// backOff builds the retry schedule. A zero MaxElapsedTime disables retries.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxElapsedTime <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(bo, ctx)
}

// Fetcher reads sources completely, retrying failed fetches with backoff.
// A fetch that still fails is returned as a TransientSourceError.
type Fetcher struct {
	policy RetryPolicy
	logger *zap.Logger
}

// NewFetcher creates a Fetcher. A nil logger disables logging.
func NewFetcher(policy RetryPolicy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{policy: policy, logger: logger}
}

// FetchQuotes reads every quote newer than since.
func (f *Fetcher) FetchQuotes(ctx context.Context, src QuoteSource, since *time.Time) ([]*domain.RawQuote, error) {
	var rows []*domain.RawQuote
	err := f.retry(ctx, "quotes", func() error {
		var err error
		rows, err = src.FetchQuotes(ctx, since)
		return err
	})
	return rows, err
}

// FetchPosts reads every post newer than since.
func (f *Fetcher) FetchPosts(ctx context.Context, src PostSource, since *time.Time) ([]*domain.RawPost, error) {
	var rows []*domain.RawPost
	err := f.retry(ctx, "posts", func() error {
		var err error
		rows, err = src.FetchPosts(ctx, since)
		return err
	})
	return rows, err
}

func (f *Fetcher) retry(ctx context.Context, source string, op func() error) error {
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("Source fetch failed, retrying",
			zap.String("source", source), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, f.policy.backOff(ctx), notify); err != nil {
		return &TransientSourceError{Source: source, Err: err}
	}
	return nil
}
