package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// NoteStore is an in-memory implementation of storage.NoteStore.
type NoteStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Note // keyed by url
	nextID int64
}

// NewNoteStore creates a new in-memory note store.
func NewNoteStore() *NoteStore {
	return &NoteStore{
		data: make(map[string]*domain.Note),
	}
}

// Insert adds a note. Returns ErrDuplicateKey if url exists.
func (s *NoteStore) Insert(_ context.Context, n *domain.Note) error {
	if n == nil || n.Validate() != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[n.URL]; exists {
		return storage.ErrDuplicateKey
	}

	s.store(n)
	return nil
}

// InsertBulk adds multiple notes atomically. Fails entire batch on any duplicate.
func (s *NoteStore) InsertBulk(_ context.Context, notes []*domain.Note) error {
	if len(notes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		if n == nil || n.Validate() != nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[n.URL]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[n.URL]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[n.URL] = struct{}{}
	}

	for _, n := range notes {
		s.store(n)
	}
	return nil
}

func (s *NoteStore) store(n *domain.Note) {
	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = time.Now().UTC()
	copy := *n
	s.data[n.URL] = &copy
}

// LoadURLs returns the url of every stored note.
func (s *NoteStore) LoadURLs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.data))
	for url := range s.data {
		urls = append(urls, url)
	}
	return urls, nil
}

// GetByUserID retrieves all notes of a user, ordered by published_at ASC.
func (s *NoteStore) GetByUserID(_ context.Context, userID int64) ([]*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Note
	for _, n := range s.data {
		if n.UserID == userID {
			copy := *n
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PublishedAt.Equal(result[j].PublishedAt) {
			return result[i].PublishedAt.Before(result[j].PublishedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Count returns the number of notes.
func (s *NoteStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func (s *NoteStore) maxPublishedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max time.Time
	for _, n := range s.data {
		if n.PublishedAt.After(max) {
			max = n.PublishedAt
		}
	}
	return max, len(s.data) > 0
}

var _ storage.NoteStore = (*NoteStore)(nil)
