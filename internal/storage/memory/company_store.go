package memory

import (
	"context"
	"sync"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// CompanyStore is an in-memory implementation of storage.CompanyStore.
type CompanyStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Company // keyed by ticker
	nextID int64
}

// NewCompanyStore creates a new in-memory company store.
func NewCompanyStore() *CompanyStore {
	return &CompanyStore{
		data: make(map[string]*domain.Company),
	}
}

// Insert adds a company and sets its ID. Returns ErrDuplicateKey if the ticker exists.
func (s *CompanyStore) Insert(_ context.Context, c *domain.Company) error {
	if c == nil || c.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.Ticker]; exists {
		return storage.ErrDuplicateKey
	}

	s.store(c)
	return nil
}

// InsertBulk adds multiple companies atomically. Fails entire batch on any duplicate.
func (s *CompanyStore) InsertBulk(_ context.Context, companies []*domain.Company) error {
	if len(companies) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		if c == nil || c.Ticker == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[c.Ticker]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.Ticker]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.Ticker] = struct{}{}
	}

	for _, c := range companies {
		s.store(c)
	}
	return nil
}

// store assigns an ID and keeps a copy. Caller holds the lock.
func (s *CompanyStore) store(c *domain.Company) {
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now().UTC()
	copy := *c
	s.data[c.Ticker] = &copy
}

// GetByNaturalKey retrieves a company by ticker.
func (s *CompanyStore) GetByNaturalKey(_ context.Context, ticker string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[ticker]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

// LoadNaturalKeys returns every ticker with its ID.
func (s *CompanyStore) LoadNaturalKeys(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]int64, len(s.data))
	for ticker, c := range s.data {
		keys[ticker] = c.ID
	}
	return keys, nil
}

// Count returns the number of companies.
func (s *CompanyStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

var _ storage.CompanyStore = (*CompanyStore)(nil)
