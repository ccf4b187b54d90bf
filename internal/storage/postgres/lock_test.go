package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sentiment-lab/internal/storage"
)

func TestRunLock_ExclusiveUntilReleased(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	const key = 7172972

	first, err := AcquireRunLock(ctx, pool, key)
	require.NoError(t, err)

	_, err = AcquireRunLock(ctx, pool, key)
	assert.ErrorIs(t, err, storage.ErrLocked)

	other, err := AcquireRunLock(ctx, pool, key+1)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, first.Release(ctx))

	again, err := AcquireRunLock(ctx, pool, key)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}
