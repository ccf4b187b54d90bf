package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// QuoteStore implements storage.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *Pool
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(pool *Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

const insertQuoteQuery = `
	INSERT INTO quotes (
		company_id, date, open, close, high, low, volume, pct_change
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at
`

func quoteArgs(q *domain.Quote) []any {
	return []any{
		q.CompanyID,
		domain.TruncateDay(q.Date),
		q.Open,
		q.Close,
		q.High,
		q.Low,
		q.Volume,
		q.PctChange,
	}
}

// Insert adds a quote. Returns ErrDuplicateKey if (company_id, date) exists.
func (s *QuoteStore) Insert(ctx context.Context, q *domain.Quote) error {
	var id int64
	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, insertQuoteQuery, quoteArgs(q)...).Scan(&id, &createdAt); err != nil {
		return classifyWriteError("insert quote", err)
	}
	q.ID, q.CreatedAt = id, createdAt
	return nil
}

// InsertBulk adds multiple quotes atomically. Fails entire batch on any duplicate.
func (s *QuoteStore) InsertBulk(ctx context.Context, quotes []*domain.Quote) error {
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
		if err := tx.QueryRow(ctx, insertQuoteQuery, quoteArgs(q)...).Scan(&ids[i], &created[i]); err != nil {
			return classifyWriteError("insert quote in bulk", err)
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

// ExistingKeys returns the keys of quotes for the given companies with date in [from, to].
func (s *QuoteStore) ExistingKeys(ctx context.Context, companyIDs []int64, from, to time.Time) ([]domain.QuoteKey, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT company_id, date
		FROM quotes
		WHERE company_id = ANY($1) AND date >= $2 AND date <= $3
	`

	rows, err := s.pool.Query(ctx, query, companyIDs, domain.TruncateDay(from), domain.TruncateDay(to))
	if err != nil {
		return nil, fmt.Errorf("get existing quote keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.QuoteKey
	for rows.Next() {
		var k domain.QuoteKey
		if err := rows.Scan(&k.CompanyID, &k.Date); err != nil {
			return nil, fmt.Errorf("scan quote key row: %w", err)
		}
		k.Date = k.Date.UTC()
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote key rows: %w", err)
	}
	return keys, nil
}

// LastCloses returns, per company, the close of the latest quote dated on or before at.
func (s *QuoteStore) LastCloses(ctx context.Context, at time.Time) (map[int64]float64, error) {
	query := `
		SELECT DISTINCT ON (company_id) company_id, close
		FROM quotes
		WHERE date <= $1
		ORDER BY company_id, date DESC
	`

	rows, err := s.pool.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("get last closes: %w", err)
	}
	defer rows.Close()

	closes := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var close float64
		if err := rows.Scan(&id, &close); err != nil {
			return nil, fmt.Errorf("scan last close row: %w", err)
		}
		closes[id] = close
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate last close rows: %w", err)
	}
	return closes, nil
}

// GetByCompanyID retrieves all quotes of a company, ordered by date ASC.
func (s *QuoteStore) GetByCompanyID(ctx context.Context, companyID int64) ([]*domain.Quote, error) {
	query := `
		SELECT id, company_id, date, open, close, high, low, volume, pct_change, created_at
		FROM quotes
		WHERE company_id = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("get quotes by company id: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// Count returns the number of quotes.
func (s *QuoteStore) Count(ctx context.Context) (int, error) {
	return countRows(ctx, s.pool, "quotes")
}

// scanQuotes scans multiple rows into a slice of Quote.
func scanQuotes(rows pgx.Rows) ([]*domain.Quote, error) {
	var quotes []*domain.Quote

	for rows.Next() {
		var q domain.Quote
		err := rows.Scan(
			&q.ID,
			&q.CompanyID,
			&q.Date,
			&q.Open,
			&q.Close,
			&q.High,
			&q.Low,
			&q.Volume,
			&q.PctChange,
			&q.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}
		q.Date = q.Date.UTC()
		quotes = append(quotes, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote rows: %w", err)
	}

	return quotes, nil
}
