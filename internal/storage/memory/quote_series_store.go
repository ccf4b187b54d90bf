package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

type seriesKey struct {
	ticker string
	date   time.Time
}

// QuoteSeriesStore is an in-memory implementation of storage.QuoteSeriesStore.
type QuoteSeriesStore struct {
	mu   sync.RWMutex
	data map[seriesKey]*domain.QuotePoint
}

// NewQuoteSeriesStore creates a new in-memory quote series store.
func NewQuoteSeriesStore() *QuoteSeriesStore {
	return &QuoteSeriesStore{
		data: make(map[seriesKey]*domain.QuotePoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (ticker, date).
func (s *QuoteSeriesStore) InsertBulk(_ context.Context, points []*domain.QuotePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[seriesKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Ticker == "" {
			return storage.ErrInvalidInput
		}
		key := seriesKey{p.Ticker, p.Date.UTC()}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[seriesKey{p.Ticker, p.Date.UTC()}] = &copy
	}
	return nil
}

// GetByTicker retrieves all points for a ticker, ordered by date ASC.
func (s *QuoteSeriesStore) GetByTicker(_ context.Context, ticker string) ([]*domain.QuotePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QuotePoint
	for key, p := range s.data {
		if key.ticker == ticker {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

var _ storage.QuoteSeriesStore = (*QuoteSeriesStore)(nil)
