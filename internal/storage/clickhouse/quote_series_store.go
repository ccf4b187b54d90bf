package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// QuoteSeriesStore implements storage.QuoteSeriesStore using ClickHouse.
type QuoteSeriesStore struct {
	conn *Conn
}

// NewQuoteSeriesStore creates a new QuoteSeriesStore.
func NewQuoteSeriesStore(conn *Conn) *QuoteSeriesStore {
	return &QuoteSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteSeriesStore = (*QuoteSeriesStore)(nil)

type seriesKey struct {
	ticker string
	date   time.Time
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (ticker, date).
func (s *QuoteSeriesStore) InsertBulk(ctx context.Context, points []*domain.QuotePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[seriesKey]struct{}, len(points))
	tickers := make([]string, 0, len(points))
	for _, p := range points {
		k := seriesKey{p.Ticker, domain.TruncateDay(p.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		tickers = append(tickers, p.Ticker)
	}

	// Check for duplicates against existing rows in one round trip
	existing, err := s.existingKeys(ctx, tickers)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for k := range seen {
		if _, ok := existing[k]; ok {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quote_series (
			ticker, date, close, volume, pct_change, has_change
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		var hasChange uint8
		if p.HasChange {
			hasChange = 1
		}
		err = batch.Append(
			p.Ticker, domain.TruncateDay(p.Date),
			p.Close, p.Volume, p.PctChange, hasChange,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTicker retrieves all points for a ticker, ordered by date ASC.
func (s *QuoteSeriesStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.QuotePoint, error) {
	query := `
		SELECT ticker, date, close, volume, pct_change, has_change
		FROM quote_series FINAL
		WHERE ticker = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query by ticker: %w", err)
	}
	defer rows.Close()

	return scanQuoteSeries(rows)
}

// existingKeys returns the (ticker, date) pairs already stored for the given tickers.
func (s *QuoteSeriesStore) existingKeys(ctx context.Context, tickers []string) (map[seriesKey]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ticker, date FROM quote_series
		WHERE ticker IN ?
	`, tickers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[seriesKey]struct{})
	for rows.Next() {
		var ticker string
		var date time.Time
		if err := rows.Scan(&ticker, &date); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[seriesKey{ticker, domain.TruncateDay(date)}] = struct{}{}
	}
	return keys, rows.Err()
}

// scanQuoteSeries scans rows into QuotePoint slice.
func scanQuoteSeries(rows driver.Rows) ([]*domain.QuotePoint, error) {
	var points []*domain.QuotePoint

	for rows.Next() {
		var p domain.QuotePoint
		var hasChange uint8
		if err := rows.Scan(&p.Ticker, &p.Date, &p.Close, &p.Volume, &p.PctChange, &hasChange); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		p.Date = p.Date.UTC()
		p.HasChange = hasChange == 1
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return points, nil
}
