package memory

import (
	"context"
	"time"

	"market-sentiment-lab/internal/storage"
)

// WatermarkStore is an in-memory implementation of storage.WatermarkStore
// backed by the other memory stores. A nil store behaves as an empty table.
type WatermarkStore struct {
	Quotes        *QuoteStore
	Notes         *NoteStore
	StagingQuotes *StagingQuoteStore
	StagingPosts  *StagingPostStore
}

// NewWatermarkStore creates a watermark store over the target stores.
func NewWatermarkStore(quotes *QuoteStore, notes *NoteStore) *WatermarkStore {
	return &WatermarkStore{Quotes: quotes, Notes: notes}
}

// MaxTimestamp returns the latest timestamp of the target table.
func (s *WatermarkStore) MaxTimestamp(_ context.Context, target storage.Target) (time.Time, bool, error) {
	var ts time.Time
	var ok bool

	switch target {
	case storage.QuotesByDate:
		if s.Quotes != nil {
			ts, ok = s.Quotes.maxDate()
		}
	case storage.NotesByPublishedAt:
		if s.Notes != nil {
			ts, ok = s.Notes.maxPublishedAt()
		}
	case storage.StagingQuotesByDate:
		if s.StagingQuotes != nil {
			ts, ok = s.StagingQuotes.maxDate()
		}
	case storage.StagingPostsCreatedAt:
		if s.StagingPosts != nil {
			ts, ok = s.StagingPosts.maxCreatedAt()
		}
	default:
		return time.Time{}, false, storage.ErrUnknownTarget
	}
	return ts, ok, nil
}

var _ storage.WatermarkStore = (*WatermarkStore)(nil)
