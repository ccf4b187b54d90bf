package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
type QuoteStore struct {
	mu     sync.RWMutex
	data   map[domain.QuoteKey]*domain.Quote
	nextID int64
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		data: make(map[domain.QuoteKey]*domain.Quote),
	}
}

// Insert adds a quote. Returns ErrDuplicateKey if (company_id, date) exists.
func (s *QuoteStore) Insert(_ context.Context, q *domain.Quote) error {
	if q == nil || q.Validate() != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[q.Key()]; exists {
		return storage.ErrDuplicateKey
	}

	s.store(q)
	return nil
}

// InsertBulk adds multiple quotes atomically. Fails entire batch on any duplicate.
func (s *QuoteStore) InsertBulk(_ context.Context, quotes []*domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[domain.QuoteKey]struct{}, len(quotes))
	for _, q := range quotes {
		if q == nil || q.Validate() != nil {
			return storage.ErrInvalidInput
		}
		key := q.Key()
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, q := range quotes {
		s.store(q)
	}
	return nil
}

func (s *QuoteStore) store(q *domain.Quote) {
	s.nextID++
	q.ID = s.nextID
	q.CreatedAt = time.Now().UTC()
	copy := *q
	s.data[q.Key()] = &copy
}

// ExistingKeys returns the keys of quotes for the given companies with date in [from, to].
func (s *QuoteStore) ExistingKeys(_ context.Context, companyIDs []int64, from, to time.Time) ([]domain.QuoteKey, error) {
	wanted := make(map[int64]struct{}, len(companyIDs))
	for _, id := range companyIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []domain.QuoteKey
	for key := range s.data {
		if _, ok := wanted[key.CompanyID]; !ok {
			continue
		}
		if key.Date.Before(from) || key.Date.After(to) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// LastCloses returns, per company, the close of the latest quote dated on or before at.
func (s *QuoteStore) LastCloses(_ context.Context, at time.Time) (map[int64]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[int64]*domain.Quote)
	for _, q := range s.data {
		if q.Date.After(at) {
			continue
		}
		if cur, ok := latest[q.CompanyID]; !ok || q.Date.After(cur.Date) {
			latest[q.CompanyID] = q
		}
	}

	closes := make(map[int64]float64, len(latest))
	for id, q := range latest {
		closes[id] = q.Close
	}
	return closes, nil
}

// GetByCompanyID retrieves all quotes of a company, ordered by date ASC.
func (s *QuoteStore) GetByCompanyID(_ context.Context, companyID int64) ([]*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Quote
	for _, q := range s.data {
		if q.CompanyID == companyID {
			copy := *q
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Count returns the number of quotes.
func (s *QuoteStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// maxDate returns the latest quote date.
func (s *QuoteStore) maxDate() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max time.Time
	for key := range s.data {
		if key.Date.After(max) {
			max = key.Date
		}
	}
	return max, len(s.data) > 0
}

var _ storage.QuoteStore = (*QuoteStore)(nil)
