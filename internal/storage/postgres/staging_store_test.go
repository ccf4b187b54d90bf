package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

func TestStagingQuoteStore_FetchSinceAndKeys(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStagingQuoteStore(pool)

	rows := []*domain.RawQuote{
		{Ticker: "GGAL", Date: ptr(day(2024, 1, 3)), Price: ptr(110.0)},
		{Ticker: "GGAL", Date: ptr(day(2024, 1, 2)), Price: ptr(100.0), Currency: "ARS"},
		{Ticker: "YPF", Date: ptr(day(2024, 1, 3))},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	all, err := store.FetchSince(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Date.Equal(day(2024, 1, 2)))
	assert.Equal(t, "ARS", all[0].Currency)
	assert.Nil(t, all[2].Price)

	since := day(2024, 1, 2)
	newer, err := store.FetchSince(ctx, &since)
	require.NoError(t, err)
	assert.Len(t, newer, 2)

	keys, err := store.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, domain.RawQuoteKey{Ticker: "YPF", Day: day(2024, 1, 3)})

	dup := &domain.RawQuote{Ticker: "GGAL", Date: ptr(time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC))}
	assert.ErrorIs(t, store.Insert(ctx, dup), storage.ErrDuplicateKey)
}

func TestStagingPostStore_FetchSinceAndURIs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStagingPostStore(pool)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	posts := []*domain.RawPost{
		{ActorHandle: "alice", URI: "at://alice/1", CreatedAt: ptr(ts), Likes: 2, VaderScore: ptr(0.3), VaderLabel: "Positive"},
		{ActorHandle: "alice", URI: "at://alice/2", CreatedAt: ptr(ts.Add(time.Minute)), Engagement: ptr(int64(9))},
	}
	require.NoError(t, store.InsertBulk(ctx, posts))

	got, err := store.FetchSince(ctx, &ts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "at://alice/2", got[0].URI)
	require.NotNil(t, got[0].Engagement)
	assert.Equal(t, int64(9), *got[0].Engagement)

	uris, err := store.LoadURIs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"at://alice/1", "at://alice/2"}, uris)

	assert.ErrorIs(t, store.Insert(ctx, &domain.RawPost{URI: "at://alice/1"}), storage.ErrDuplicateKey)
}

func TestWatermarkStore_MaxTimestamp(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	wm := NewWatermarkStore(pool)

	_, ok, err := wm.MaxTimestamp(ctx, storage.QuotesByDate)
	require.NoError(t, err)
	assert.False(t, ok, "empty table has no watermark")

	ggal := createTestCompany(t, ctx, pool, "GGAL")
	require.NoError(t, NewQuoteStore(pool).InsertBulk(ctx, []*domain.Quote{
		{CompanyID: ggal, Date: day(2024, 1, 2), Close: 1},
		{CompanyID: ggal, Date: day(2024, 1, 9), Close: 1},
	}))

	ts, ok, err := wm.MaxTimestamp(ctx, storage.QuotesByDate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ts.Equal(day(2024, 1, 9)), "got %v", ts)

	_, _, err = wm.MaxTimestamp(ctx, storage.Target{Table: "quotes; DROP TABLE quotes", Column: "date"})
	assert.ErrorIs(t, err, storage.ErrUnknownTarget)
}
