package memory

import (
	"context"
	"sync"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.User // keyed by handle
	nextID int64
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

// Insert adds a user and sets its ID. Returns ErrDuplicateKey if the handle exists.
func (s *UserStore) Insert(_ context.Context, u *domain.User) error {
	if u == nil || u.Handle == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.Handle]; exists {
		return storage.ErrDuplicateKey
	}

	s.store(u)
	return nil
}

// InsertBulk adds multiple users atomically. Fails entire batch on any duplicate.
func (s *UserStore) InsertBulk(_ context.Context, users []*domain.User) error {
	if len(users) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u == nil || u.Handle == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[u.Handle]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[u.Handle]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[u.Handle] = struct{}{}
	}

	for _, u := range users {
		s.store(u)
	}
	return nil
}

func (s *UserStore) store(u *domain.User) {
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	copy := *u
	s.data[u.Handle] = &copy
}

// GetByNaturalKey retrieves a user by handle.
func (s *UserStore) GetByNaturalKey(_ context.Context, handle string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.data[handle]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// LoadNaturalKeys returns every handle with its ID.
func (s *UserStore) LoadNaturalKeys(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]int64, len(s.data))
	for handle, u := range s.data {
		keys[handle] = u.ID
	}
	return keys, nil
}

// Count returns the number of users.
func (s *UserStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

var _ storage.UserStore = (*UserStore)(nil)
