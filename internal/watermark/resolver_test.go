package watermark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
	"market-sentiment-lab/internal/storage/memory"
)

func TestResolver_EmptyTable(t *testing.T) {
	r := NewResolver(memory.NewWatermarkStore(memory.NewQuoteStore(), memory.NewNoteStore()))

	w, err := r.Resolve(context.Background(), storage.QuotesByDate)
	require.NoError(t, err)
	assert.False(t, w.Valid)
	assert.Nil(t, w.Since())
	assert.True(t, w.Admits(time.Unix(0, 0)), "first run admits everything")
}

func TestResolver_StrictComparison(t *testing.T) {
	ctx := context.Background()
	quotes := memory.NewQuoteStore()
	T := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, quotes.Insert(ctx, &domain.Quote{CompanyID: 1, Date: T, Close: 1}))

	r := NewResolver(memory.NewWatermarkStore(quotes, nil))
	w, err := r.Resolve(ctx, storage.QuotesByDate)
	require.NoError(t, err)
	require.True(t, w.Valid)
	assert.True(t, w.At.Equal(T))

	candidates := []time.Time{T.AddDate(0, 0, -1), T, T.AddDate(0, 0, 1)}
	kept := Filter(w, candidates, func(ts time.Time) time.Time { return ts })
	require.Len(t, kept, 1)
	assert.True(t, kept[0].Equal(T.AddDate(0, 0, 1)))
}

func TestResolver_UnknownTarget(t *testing.T) {
	r := NewResolver(memory.NewWatermarkStore(nil, nil))

	_, err := r.Resolve(context.Background(), storage.Target{Table: "users", Column: "created_at"})
	assert.ErrorIs(t, err, storage.ErrUnknownTarget)
}

func TestWatermark_String(t *testing.T) {
	assert.Equal(t, "none", Watermark{}.String())
	w := Watermark{At: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Valid: true}
	assert.Equal(t, "2024-01-10T00:00:00Z", w.String())
}
