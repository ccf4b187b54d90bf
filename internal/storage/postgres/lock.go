package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"market-sentiment-lab/internal/storage"
)

// RunLock is a session-level advisory lock held for the duration of an
// integrator run. The lock lives on a dedicated pooled connection.
type RunLock struct {
	conn *pgxpool.Conn
	key  int64
}

// AcquireRunLock tries to take the advisory lock identified by key.
// Returns storage.ErrLocked when another session holds it.
func AcquireRunLock(ctx context.Context, pool *Pool, key int64) (*RunLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, storage.ErrLocked
	}

	return &RunLock{conn: conn, key: key}, nil
}

// Release unlocks and returns the connection to the pool.
func (l *RunLock) Release(ctx context.Context) error {
	defer l.conn.Release()

	var ok bool
	if err := l.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&ok); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	if !ok {
		return fmt.Errorf("advisory unlock: lock %d was not held", l.key)
	}
	return nil
}
