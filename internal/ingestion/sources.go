package ingestion

import (
	"context"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// QuoteSource provides raw quotes from the quotes feed.
type QuoteSource interface {
	// FetchQuotes returns quotes dated strictly after since (all when nil).
	// Rows may be unordered; callers enforce ordering after coercion.
	FetchQuotes(ctx context.Context, since *time.Time) ([]*domain.RawQuote, error)
}

// PostSource provides raw posts from the posts feed.
type PostSource interface {
	// FetchPosts returns posts created strictly after since (all when nil).
	FetchPosts(ctx context.Context, since *time.Time) ([]*domain.RawPost, error)
}

// StagingQuoteSource reads quotes from the staging_quotes table.
type StagingQuoteSource struct {
	store storage.StagingQuoteStore
}

// NewStagingQuoteSource creates a QuoteSource over a staging store.
func NewStagingQuoteSource(store storage.StagingQuoteStore) *StagingQuoteSource {
	return &StagingQuoteSource{store: store}
}

// FetchQuotes implements QuoteSource.
func (s *StagingQuoteSource) FetchQuotes(ctx context.Context, since *time.Time) ([]*domain.RawQuote, error) {
	return s.store.FetchSince(ctx, since)
}

// StagingPostSource reads posts from the staging_posts table.
type StagingPostSource struct {
	store storage.StagingPostStore
}

// NewStagingPostSource creates a PostSource over a staging store.
func NewStagingPostSource(store storage.StagingPostStore) *StagingPostSource {
	return &StagingPostSource{store: store}
}

// FetchPosts implements PostSource.
func (s *StagingPostSource) FetchPosts(ctx context.Context, since *time.Time) ([]*domain.RawPost, error) {
	return s.store.FetchSince(ctx, since)
}
