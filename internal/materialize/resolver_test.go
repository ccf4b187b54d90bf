package materialize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage/memory"
)

// countingCompanyStore records bulk calls and can fail selected tickers.
type countingCompanyStore struct {
	*memory.CompanyStore
	bulkCalls int
	failOn    map[string]error
}

func (s *countingCompanyStore) InsertBulk(ctx context.Context, companies []*domain.Company) error {
	s.bulkCalls++
	for _, c := range companies {
		if err, ok := s.failOn[c.Ticker]; ok {
			return err
		}
	}
	return s.CompanyStore.InsertBulk(ctx, companies)
}

func (s *countingCompanyStore) Insert(ctx context.Context, c *domain.Company) error {
	if err, ok := s.failOn[c.Ticker]; ok {
		return err
	}
	return s.CompanyStore.Insert(ctx, c)
}

func TestResolver_CreatesEachKeyOnce(t *testing.T) {
	ctx := context.Background()
	store := &countingCompanyStore{CompanyStore: memory.NewCompanyStore()}
	r := NewCompanyResolver(store, 0, nil)
	require.NoError(t, r.Load(ctx))

	for _, ticker := range []string{"GGAL", "YPF", "GGAL", "YPF", "GGAL"} {
		require.NoError(t, r.Ensure(ctx, ticker))
	}
	assert.Equal(t, 2, len(r.pending))

	_, ok := r.ID("GGAL")
	assert.False(t, ok, "identity must not exist before flush")

	require.NoError(t, r.Flush(ctx))
	id, ok := r.ID("GGAL")
	require.True(t, ok)
	assert.Positive(t, id)

	count, _ := store.Count(ctx)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, r.Stats().Created)
}

func TestResolver_FlushesEveryN(t *testing.T) {
	ctx := context.Background()
	store := &countingCompanyStore{CompanyStore: memory.NewCompanyStore()}
	r := NewCompanyResolver(store, 2, nil)
	require.NoError(t, r.Load(ctx))

	for _, ticker := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, r.Ensure(ctx, ticker))
	}
	assert.Equal(t, 2, store.bulkCalls)
	assert.Equal(t, 1, len(r.pending))

	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, 3, store.bulkCalls)
	assert.Equal(t, 5, r.Stats().Created)
}

func TestResolver_KnownKeysAreNotInserted(t *testing.T) {
	ctx := context.Background()
	store := &countingCompanyStore{CompanyStore: memory.NewCompanyStore()}
	existing := domain.NewPlaceholderCompany("BMA")
	require.NoError(t, store.CompanyStore.Insert(ctx, existing))

	r := NewCompanyResolver(store, 0, nil)
	require.NoError(t, r.Load(ctx))
	require.NoError(t, r.Ensure(ctx, "BMA"))
	require.NoError(t, r.Flush(ctx))

	assert.Zero(t, store.bulkCalls)
	id, ok := r.ID("BMA")
	require.True(t, ok)
	assert.Equal(t, existing.ID, id)
}

func TestResolver_ConflictAdoptsExistingIdentity(t *testing.T) {
	ctx := context.Background()
	store := &countingCompanyStore{CompanyStore: memory.NewCompanyStore()}
	r := NewCompanyResolver(store, 0, nil)
	require.NoError(t, r.Load(ctx))

	require.NoError(t, r.Ensure(ctx, "GGAL"))
	require.NoError(t, r.Ensure(ctx, "PAMP"))

	// Another writer creates GGAL between cache load and flush.
	rival := domain.NewPlaceholderCompany("GGAL")
	require.NoError(t, store.CompanyStore.Insert(ctx, rival))

	require.NoError(t, r.Flush(ctx))

	id, ok := r.ID("GGAL")
	require.True(t, ok)
	assert.Equal(t, rival.ID, id)
	_, ok = r.ID("PAMP")
	assert.True(t, ok)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, 1, stats.Created)

	count, _ := store.Count(ctx)
	assert.Equal(t, 2, count)
}

func TestResolver_FailedEntityIsUnstaged(t *testing.T) {
	ctx := context.Background()
	store := &countingCompanyStore{
		CompanyStore: memory.NewCompanyStore(),
		failOn:       map[string]error{"BAD": errors.New("check constraint")},
	}
	r := NewCompanyResolver(store, 0, nil)
	require.NoError(t, r.Load(ctx))

	require.NoError(t, r.Ensure(ctx, "BAD"))
	require.NoError(t, r.Ensure(ctx, "GOOD"))
	require.NoError(t, r.Flush(ctx))

	_, ok := r.ID("BAD")
	assert.False(t, ok)
	_, ok = r.ID("GOOD")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Stats().Failed)

	// A later sighting stages the key again.
	delete(store.failOn, "BAD")
	require.NoError(t, r.Ensure(ctx, "BAD"))
	assert.Equal(t, 1, len(r.pending))
	require.NoError(t, r.Flush(ctx))
	_, ok = r.ID("BAD")
	assert.True(t, ok)
}
