package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// StagingQuoteStore is an in-memory implementation of storage.StagingQuoteStore.
type StagingQuoteStore struct {
	mu     sync.RWMutex
	rows   []*domain.RawQuote
	keys   map[domain.RawQuoteKey]struct{}
	nextID int64
}

// NewStagingQuoteStore creates a new in-memory staging quote store.
func NewStagingQuoteStore() *StagingQuoteStore {
	return &StagingQuoteStore{
		keys: make(map[domain.RawQuoteKey]struct{}),
	}
}

// Insert adds a raw quote. Returns ErrDuplicateKey if (ticker, day) exists.
func (s *StagingQuoteStore) Insert(_ context.Context, q *domain.RawQuote) error {
	if q == nil || q.Ticker == "" || q.Date == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[q.Key()]; exists {
		return storage.ErrDuplicateKey
	}
	s.store(q)
	return nil
}

// InsertBulk adds multiple raw quotes atomically.
func (s *StagingQuoteStore) InsertBulk(_ context.Context, quotes []*domain.RawQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[domain.RawQuoteKey]struct{}, len(quotes))
	for _, q := range quotes {
		if q == nil || q.Ticker == "" || q.Date == nil {
			return storage.ErrInvalidInput
		}
		key := q.Key()
		if _, exists := s.keys[key]; exists {
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

func (s *StagingQuoteStore) store(q *domain.RawQuote) {
	s.nextID++
	q.ID = s.nextID
	q.CreatedAt = time.Now().UTC()
	copy := *q
	s.rows = append(s.rows, &copy)
	s.keys[q.Key()] = struct{}{}
}

// Append stores raw rows as-is, bypassing validation. It mimics a feed that
// wrote incomplete rows and is meant for tests and fixtures.
func (s *StagingQuoteStore) Append(quotes ...*domain.RawQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quotes {
		s.nextID++
		copy := *q
		copy.ID = s.nextID
		s.rows = append(s.rows, &copy)
	}
}

// FetchSince returns raw quotes dated strictly after since, ordered by date ASC, id ASC.
// Rows without a date are returned only when since is nil.
func (s *StagingQuoteStore) FetchSince(_ context.Context, since *time.Time) ([]*domain.RawQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawQuote
	for _, q := range s.rows {
		if since != nil && (q.Date == nil || !q.Date.After(*since)) {
			continue
		}
		copy := *q
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		di, dj := result[i].Date, result[j].Date
		switch {
		case di == nil && dj == nil:
			return result[i].ID < result[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// LoadKeys returns the (ticker, day) key of every staged quote.
func (s *StagingQuoteStore) LoadKeys(_ context.Context) ([]domain.RawQuoteKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]domain.RawQuoteKey, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ storage.StagingQuoteStore = (*StagingQuoteStore)(nil)

// StagingPostStore is an in-memory implementation of storage.StagingPostStore.
type StagingPostStore struct {
	mu     sync.RWMutex
	rows   []*domain.RawPost
	uris   map[string]struct{}
	nextID int64
}

// NewStagingPostStore creates a new in-memory staging post store.
func NewStagingPostStore() *StagingPostStore {
	return &StagingPostStore{
		uris: make(map[string]struct{}),
	}
}

// Insert adds a raw post. Returns ErrDuplicateKey if uri exists.
func (s *StagingPostStore) Insert(_ context.Context, p *domain.RawPost) error {
	if p == nil || p.URI == "" || p.CreatedAt == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.uris[p.URI]; exists {
		return storage.ErrDuplicateKey
	}
	s.store(p)
	return nil
}

// InsertBulk adds multiple raw posts atomically.
func (s *StagingPostStore) InsertBulk(_ context.Context, posts []*domain.RawPost) error {
	if len(posts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if p == nil || p.URI == "" || p.CreatedAt == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.uris[p.URI]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[p.URI]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[p.URI] = struct{}{}
	}

	for _, p := range posts {
		s.store(p)
	}
	return nil
}

func (s *StagingPostStore) store(p *domain.RawPost) {
	s.nextID++
	p.ID = s.nextID
	p.StagedAt = time.Now().UTC()
	copy := *p
	s.rows = append(s.rows, &copy)
	s.uris[p.URI] = struct{}{}
}

// Append stores raw rows as-is, bypassing validation. Meant for tests and fixtures.
func (s *StagingPostStore) Append(posts ...*domain.RawPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range posts {
		s.nextID++
		copy := *p
		copy.ID = s.nextID
		s.rows = append(s.rows, &copy)
	}
}

// FetchSince returns raw posts created strictly after since, ordered by created_at ASC, id ASC.
func (s *StagingPostStore) FetchSince(_ context.Context, since *time.Time) ([]*domain.RawPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawPost
	for _, p := range s.rows {
		if since != nil && (p.CreatedAt == nil || !p.CreatedAt.After(*since)) {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		ci, cj := result[i].CreatedAt, result[j].CreatedAt
		switch {
		case ci == nil && cj == nil:
			return result[i].ID < result[j].ID
		case ci == nil:
			return false
		case cj == nil:
			return true
		case !ci.Equal(*cj):
			return ci.Before(*cj)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// LoadURIs returns the uri of every staged post.
func (s *StagingPostStore) LoadURIs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.uris))
	for uri := range s.uris {
		uris = append(uris, uri)
	}
	return uris, nil
}

var _ storage.StagingPostStore = (*StagingPostStore)(nil)

func (s *StagingQuoteStore) maxDate() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max time.Time
	found := false
	for _, q := range s.rows {
		if q.Date == nil {
			continue
		}
		if !found || q.Date.After(max) {
			max = *q.Date
			found = true
		}
	}
	return max, found
}

func (s *StagingPostStore) maxCreatedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max time.Time
	found := false
	for _, p := range s.rows {
		if p.CreatedAt == nil {
			continue
		}
		if !found || p.CreatedAt.After(max) {
			max = *p.CreatedAt
			found = true
		}
	}
	return max, found
}
