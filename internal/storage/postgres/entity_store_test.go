package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

func TestCompanyStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCompanyStore(pool)

	c := domain.NewPlaceholderCompany("GGAL")
	require.NoError(t, store.Insert(ctx, c))
	assert.NotZero(t, c.ID)

	got, err := store.GetByNaturalKey(ctx, "GGAL")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "GGAL", got.Name)
	assert.Nil(t, got.Sector)

	_, err = store.GetByNaturalKey(ctx, "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Insert(ctx, domain.NewPlaceholderCompany("GGAL"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestCompanyStore_InsertBulkRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCompanyStore(pool)

	require.NoError(t, store.Insert(ctx, domain.NewPlaceholderCompany("YPF")))

	batch := []*domain.Company{
		domain.NewPlaceholderCompany("GGAL"),
		domain.NewPlaceholderCompany("YPF"),
	}
	err := store.InsertBulk(ctx, batch)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.Zero(t, batch[0].ID, "IDs must not be assigned on rollback")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	keys, err := store.LoadNaturalKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "YPF")
	assert.NotContains(t, keys, "GGAL")
}

func TestUserStore_PlaceholderDefaults(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewUserStore(pool)

	users := []*domain.User{
		domain.NewPlaceholderUser("alice.bsky.social"),
		domain.NewPlaceholderUser("bob.bsky.social"),
	}
	require.NoError(t, store.InsertBulk(ctx, users))
	assert.NotZero(t, users[0].ID)
	assert.NotEqual(t, users[0].ID, users[1].ID)

	got, err := store.GetByNaturalKey(ctx, "bob.bsky.social")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserType, got.UserType)
	assert.Equal(t, domain.DefaultLanguage, got.Language)
	assert.False(t, got.Verified)
	assert.Zero(t, got.Followers)

	keys, err := store.LoadNaturalKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, keys["alice.bsky.social"])
}

func TestUserStore_UnknownUserTypeIsIntegrityError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewUserStore(pool)

	u := domain.NewPlaceholderUser("carol.bsky.social")
	u.UserType = "martian"

	err := store.Insert(ctx, u)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrDuplicateKey)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	var fatal *storage.FatalIntegrityError
	assert.ErrorAs(t, err, &fatal)
}
