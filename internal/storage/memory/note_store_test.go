package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

func TestNoteStore_InsertAndLoadURLs(t *testing.T) {
	store := NewNoteStore()
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	notes := []*domain.Note{
		{UserID: 1, URL: "at://a/1", PublishedAt: ts, SentimentLabel: "Neutral"},
		{UserID: 1, URL: "at://a/2", PublishedAt: ts.Add(time.Hour), SentimentLabel: "Neutral"},
	}
	if err := store.InsertBulk(ctx, notes); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	urls, err := store.LoadURLs(ctx)
	if err != nil {
		t.Fatalf("LoadURLs failed: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("Expected 2 urls, got %d", len(urls))
	}

	err = store.Insert(ctx, &domain.Note{UserID: 2, URL: "at://a/1", PublishedAt: ts})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestNoteStore_RejectsOutOfRangeScore(t *testing.T) {
	store := NewNoteStore()
	score := 1.5

	err := store.Insert(context.Background(), &domain.Note{
		UserID: 1, URL: "at://a/1", PublishedAt: time.Now(), SentimentScore: &score,
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
