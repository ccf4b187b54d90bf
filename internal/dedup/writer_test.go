package dedup

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
	"market-sentiment-lab/internal/storage/memory"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func quoteKey(q *domain.Quote) domain.QuoteKey { return q.Key() }

func validateQuote(q *domain.Quote) error { return q.Validate() }

func newQuoteWriter(sink Sink[*domain.Quote], batch int, preload []domain.QuoteKey) *Writer[*domain.Quote, domain.QuoteKey] {
	return NewWriter(Options[*domain.Quote, domain.QuoteKey]{
		Name:     "quotes",
		Sink:     sink,
		Key:      quoteKey,
		Validate: validateQuote,
		LoadKeys: func(context.Context, []*domain.Quote) ([]domain.QuoteKey, error) {
			return preload, nil
		},
		BatchSize: batch,
	})
}

func TestWriter_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuoteStore()
	w := newQuoteWriter(store, 10, nil)

	records := []*domain.Quote{
		{CompanyID: 1, Date: day(2), Close: 100},
		{CompanyID: 1, Date: day(3), Close: 110},
		{CompanyID: 1, Date: day(4), Close: math.NaN()},
		{CompanyID: 1, Date: day(5), Close: 99},
	}

	res, err := w.Write(ctx, records)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Persisted)
	assert.Equal(t, 1, res.SkippedMalformed)
	assert.Len(t, res.Records, 4)
	assert.Equal(t, SkippedMalformed, res.Records[2].Outcome)
	assert.ErrorIs(t, res.Records[2].Err, domain.ErrInvalidQuote)

	count, _ := store.Count(ctx)
	assert.Equal(t, 3, count)
}

func TestWriter_DuplicatesWithinAndAcrossChunks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuoteStore()
	w := newQuoteWriter(store, 2, nil)

	records := []*domain.Quote{
		{CompanyID: 1, Date: day(2), Close: 100},
		{CompanyID: 1, Date: day(2), Close: 100},
		{CompanyID: 1, Date: day(3), Close: 101},
		{CompanyID: 1, Date: day(2), Close: 100},
	}

	res, err := w.Write(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Persisted)
	assert.Equal(t, 2, res.SkippedDuplicate)
}

func TestWriter_PreloadedKeysSkipped(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuoteStore()
	existing := &domain.Quote{CompanyID: 1, Date: day(2), Close: 100}
	require.NoError(t, store.Insert(ctx, existing))

	w := newQuoteWriter(store, 10, []domain.QuoteKey{existing.Key()})
	res, err := w.Write(ctx, []*domain.Quote{
		{CompanyID: 1, Date: day(2), Close: 100},
		{CompanyID: 1, Date: day(3), Close: 101},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Persisted)
	assert.Equal(t, 1, res.SkippedDuplicate)
}

func TestWriter_BulkConflictFallsBackPerRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuoteStore()
	require.NoError(t, store.Insert(ctx, &domain.Quote{CompanyID: 1, Date: day(3), Close: 1}))

	// No preload: the bulk insert hits the existing row and is rolled back.
	w := newQuoteWriter(store, 10, nil)
	res, err := w.Write(ctx, []*domain.Quote{
		{CompanyID: 1, Date: day(2), Close: 100},
		{CompanyID: 1, Date: day(3), Close: 101},
		{CompanyID: 1, Date: day(4), Close: 102},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Persisted)
	assert.Equal(t, 1, res.SkippedDuplicate)

	count, _ := store.Count(ctx)
	assert.Equal(t, 3, count)
}

func TestWriter_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuoteStore()
	records := func() []*domain.Quote {
		return []*domain.Quote{
			{CompanyID: 1, Date: day(2), Close: 100},
			{CompanyID: 2, Date: day(2), Close: 50},
		}
	}

	loader := func(ctx context.Context, recs []*domain.Quote) ([]domain.QuoteKey, error) {
		return store.ExistingKeys(ctx, []int64{1, 2}, day(1), day(31))
	}
	w := NewWriter(Options[*domain.Quote, domain.QuoteKey]{
		Sink: store, Key: quoteKey, Validate: validateQuote, LoadKeys: loader,
	})

	first, err := w.Write(ctx, records())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Persisted)

	second, err := w.Write(ctx, records())
	require.NoError(t, err)
	assert.Zero(t, second.Persisted)
	assert.Equal(t, 2, second.SkippedDuplicate)
}

// flakySink fails every bulk insert and rejects one record with a
// non-conflict error.
type flakySink struct {
	inner  *memory.QuoteStore
	reject domain.QuoteKey
}

func (s *flakySink) Insert(ctx context.Context, q *domain.Quote) error {
	if q.Key() == s.reject {
		return errors.New("connection reset")
	}
	return s.inner.Insert(ctx, q)
}

func (s *flakySink) InsertBulk(context.Context, []*domain.Quote) error {
	return errors.New("connection reset")
}

func TestWriter_PerRecordFailureCounted(t *testing.T) {
	ctx := context.Background()
	bad := domain.QuoteKey{CompanyID: 1, Date: day(3)}
	sink := &flakySink{inner: memory.NewQuoteStore(), reject: bad}
	w := newQuoteWriter(sink, 10, nil)

	res, err := w.Write(ctx, []*domain.Quote{
		{CompanyID: 1, Date: day(2), Close: 100},
		{CompanyID: 1, Date: day(3), Close: 101},
		{CompanyID: 1, Date: day(4), Close: 102},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Persisted)
	assert.Equal(t, 1, res.Failed)

	var fatal *storage.FatalIntegrityError
	assert.ErrorAs(t, res.Records[1].Err, &fatal)
}

func TestWriter_LoadKeysError(t *testing.T) {
	boom := errors.New("boom")
	w := NewWriter(Options[*domain.Quote, domain.QuoteKey]{
		Sink: memory.NewQuoteStore(),
		Key:  quoteKey,
		LoadKeys: func(context.Context, []*domain.Quote) ([]domain.QuoteKey, error) {
			return nil, boom
		},
	})

	_, err := w.Write(context.Background(), []*domain.Quote{{CompanyID: 1, Date: day(2), Close: 1}})
	assert.ErrorIs(t, err, boom)
}

func TestWriter_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newQuoteWriter(memory.NewQuoteStore(), 1, nil)
	res, err := w.Write(ctx, []*domain.Quote{{CompanyID: 1, Date: day(2), Close: 1}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Persisted)
}
