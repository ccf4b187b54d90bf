package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// CompanyStore implements storage.CompanyStore using PostgreSQL.
type CompanyStore struct {
	pool *Pool
}

// NewCompanyStore creates a new CompanyStore.
func NewCompanyStore(pool *Pool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CompanyStore = (*CompanyStore)(nil)

const insertCompanyQuery = `
	INSERT INTO companies (ticker, name, sector, market_cap)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
`

// Insert adds a company and sets its ID. Returns ErrDuplicateKey if the ticker exists.
func (s *CompanyStore) Insert(ctx context.Context, c *domain.Company) error {
	var id int64
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, insertCompanyQuery, c.Ticker, c.Name, c.Sector, c.MarketCap).Scan(&id, &createdAt)
	if err != nil {
		return classifyWriteError("insert company", err)
	}
	c.ID, c.CreatedAt = id, createdAt
	return nil
}

// InsertBulk adds multiple companies atomically. Fails entire batch on any duplicate.
func (s *CompanyStore) InsertBulk(ctx context.Context, companies []*domain.Company) error {
	if len(companies) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, len(companies))
	created := make([]time.Time, len(companies))
	for i, c := range companies {
		err := tx.QueryRow(ctx, insertCompanyQuery, c.Ticker, c.Name, c.Sector, c.MarketCap).Scan(&ids[i], &created[i])
		if err != nil {
			return classifyWriteError("insert company in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, c := range companies {
		c.ID, c.CreatedAt = ids[i], created[i]
	}
	return nil
}

// GetByNaturalKey retrieves a company by ticker. Returns ErrNotFound if not exists.
func (s *CompanyStore) GetByNaturalKey(ctx context.Context, ticker string) (*domain.Company, error) {
	query := `
		SELECT id, ticker, name, sector, market_cap, created_at
		FROM companies
		WHERE ticker = $1
	`

	var c domain.Company
	err := s.pool.QueryRow(ctx, query, ticker).Scan(
		&c.ID,
		&c.Ticker,
		&c.Name,
		&c.Sector,
		&c.MarketCap,
		&c.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get company by ticker: %w", err)
	}
	return &c, nil
}

// LoadNaturalKeys returns every ticker with its ID.
func (s *CompanyStore) LoadNaturalKeys(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT ticker, id FROM companies`)
	if err != nil {
		return nil, fmt.Errorf("load company tickers: %w", err)
	}
	return scanNaturalKeys(rows, "company")
}

// Count returns the number of companies.
func (s *CompanyStore) Count(ctx context.Context) (int, error) {
	return countRows(ctx, s.pool, "companies")
}

// scanNaturalKeys collects (natural_key, id) rows into a map.
func scanNaturalKeys(rows pgx.Rows, entity string) (map[string]int64, error) {
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("scan %s key row: %w", entity, err)
		}
		keys[key] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s key rows: %w", entity, err)
	}
	return keys, nil
}

// countRows returns COUNT(*) of a fixed table name.
func countRows(ctx context.Context, pool *Pool, table string) (int, error) {
	var n int
	query := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
	if err := pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
