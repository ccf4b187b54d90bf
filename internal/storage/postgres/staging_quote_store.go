package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// StagingQuoteStore implements storage.StagingQuoteStore using PostgreSQL.
type StagingQuoteStore struct {
	pool *Pool
}

// NewStagingQuoteStore creates a new StagingQuoteStore.
func NewStagingQuoteStore(pool *Pool) *StagingQuoteStore {
	return &StagingQuoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StagingQuoteStore = (*StagingQuoteStore)(nil)

const insertStagingQuoteQuery = `
	INSERT INTO staging_quotes (
		ticker, date, price, opening, min, max, volume, settlement, instrument_type, currency
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id, created_at
`

func stagingQuoteArgs(q *domain.RawQuote) []any {
	return []any{
		q.Ticker,
		q.Date,
		q.Price,
		q.Opening,
		q.Min,
		q.Max,
		q.Volume,
		q.Settlement,
		q.InstrumentType,
		q.Currency,
	}
}

// Insert adds a raw quote. Returns ErrDuplicateKey if (ticker, day) exists.
func (s *StagingQuoteStore) Insert(ctx context.Context, q *domain.RawQuote) error {
	var id int64
	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, insertStagingQuoteQuery, stagingQuoteArgs(q)...).Scan(&id, &createdAt); err != nil {
		return classifyWriteError("insert staging quote", err)
	}
	q.ID, q.CreatedAt = id, createdAt
	return nil
}

// InsertBulk adds multiple raw quotes atomically.
func (s *StagingQuoteStore) InsertBulk(ctx context.Context, quotes []*domain.RawQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, len(quotes))
	created := make([]time.Time, len(quotes))
	for i, q := range quotes {
		if err := tx.QueryRow(ctx, insertStagingQuoteQuery, stagingQuoteArgs(q)...).Scan(&ids[i], &created[i]); err != nil {
			return classifyWriteError("insert staging quote in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, q := range quotes {
		q.ID, q.CreatedAt = ids[i], created[i]
	}
	return nil
}

// FetchSince returns raw quotes dated strictly after since (all when since is nil),
// ordered by date ASC, id ASC.
func (s *StagingQuoteStore) FetchSince(ctx context.Context, since *time.Time) ([]*domain.RawQuote, error) {
	query := `
		SELECT id, ticker, date, price, opening, min, max, volume,
			COALESCE(settlement, ''), COALESCE(instrument_type, ''), COALESCE(currency, ''), created_at
		FROM staging_quotes
		WHERE $1::timestamptz IS NULL OR date > $1
		ORDER BY date ASC NULLS LAST, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("fetch staging quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*domain.RawQuote
	for rows.Next() {
		var q domain.RawQuote
		err := rows.Scan(
			&q.ID,
			&q.Ticker,
			&q.Date,
			&q.Price,
			&q.Opening,
			&q.Min,
			&q.Max,
			&q.Volume,
			&q.Settlement,
			&q.InstrumentType,
			&q.Currency,
			&q.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan staging quote row: %w", err)
		}
		quotes = append(quotes, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging quote rows: %w", err)
	}
	return quotes, nil
}

// LoadKeys returns the (ticker, day) key of every staged quote.
func (s *StagingQuoteStore) LoadKeys(ctx context.Context) ([]domain.RawQuoteKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT ticker, day FROM staging_quotes WHERE day IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load staging quote keys: %w", err)
	}

	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RawQuoteKey, error) {
		var k domain.RawQuoteKey
		err := row.Scan(&k.Ticker, &k.Day)
		k.Day = k.Day.UTC()
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect staging quote keys: %w", err)
	}
	return keys, nil
}
