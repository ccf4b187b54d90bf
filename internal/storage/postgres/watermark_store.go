package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sentiment-lab/internal/storage"
)

// WatermarkStore implements storage.WatermarkStore using PostgreSQL.
type WatermarkStore struct {
	pool *Pool
}

// NewWatermarkStore creates a new WatermarkStore.
func NewWatermarkStore(pool *Pool) *WatermarkStore {
	return &WatermarkStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatermarkStore = (*WatermarkStore)(nil)

// MaxTimestamp returns MAX(column) of the target table. Only registered
// targets are accepted; identifiers are quoted before interpolation.
func (s *WatermarkStore) MaxTimestamp(ctx context.Context, target storage.Target) (time.Time, bool, error) {
	if !storage.KnownTarget(target) {
		return time.Time{}, false, fmt.Errorf("%w: %s", storage.ErrUnknownTarget, target)
	}

	query := fmt.Sprintf("SELECT MAX(%s)::timestamptz FROM %s",
		pgx.Identifier{target.Column}.Sanitize(),
		pgx.Identifier{target.Table}.Sanitize(),
	)

	var ts *time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("max timestamp of %s: %w", target, err)
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}
