package materialize

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/ingestion"
	"market-sentiment-lab/internal/storage"
)

// QuoteBatch is the output of QuoteMaterializer.Finish.
type QuoteBatch struct {
	// Quotes are ready to write, ordered by date then ticker.
	Quotes []*domain.Quote
	// Tickers maps each company ID in Quotes back to its ticker.
	Tickers map[int64]string
	// Unresolved counts records dropped because their company could not be created.
	Unresolved int
	// Duplicates counts records repeating a (ticker, day) already staged.
	Duplicates      int
	EntitiesCreated int
}

// QuoteMaterializer builds quotes from quote records, creating companies
// for unseen tickers. Records are staged first and attached to company IDs
// only after the final flush.
type QuoteMaterializer struct {
	companies *Resolver[*domain.Company]
	quotes    storage.QuoteStore
	logger    *zap.Logger
	drafts    []ingestion.QuoteRecord
	staged    map[domain.RawQuoteKey]struct{}
	dups      int
}

// NewQuoteMaterializer creates a materializer. quotes seeds the percent
// change with the last persisted close of each company; nil disables seeding.
func NewQuoteMaterializer(companies *Resolver[*domain.Company], quotes storage.QuoteStore, logger *zap.Logger) *QuoteMaterializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteMaterializer{companies: companies, quotes: quotes, logger: logger}
}

// NewCompanyResolver returns a Resolver creating placeholder companies.
func NewCompanyResolver(store storage.CompanyStore, flushEvery int, logger *zap.Logger) *Resolver[*domain.Company] {
	return NewResolver(ResolverOptions[*domain.Company]{
		Name:       "companies",
		Store:      store,
		New:        domain.NewPlaceholderCompany,
		FlushEvery: flushEvery,
		Logger:     logger,
	})
}

// Stage records drafts and ensures a company exists for every ticker.
// Only the first record of each (ticker, day) is kept, so the percent
// change is folded over the closes that will actually be written.
func (m *QuoteMaterializer) Stage(ctx context.Context, records []ingestion.QuoteRecord) error {
	if m.staged == nil {
		m.staged = make(map[domain.RawQuoteKey]struct{}, len(records))
	}
	for _, rec := range records {
		key := rec.Key()
		if _, dup := m.staged[key]; dup {
			m.dups++
			continue
		}
		m.staged[key] = struct{}{}
		if err := m.companies.Ensure(ctx, rec.Ticker); err != nil {
			return fmt.Errorf("stage company %q: %w", rec.Ticker, err)
		}
		m.drafts = append(m.drafts, rec)
	}
	return nil
}

// Finish flushes pending companies, computes percent changes and attaches
// company IDs to the staged drafts.
func (m *QuoteMaterializer) Finish(ctx context.Context) (*QuoteBatch, error) {
	if err := m.companies.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush companies: %w", err)
	}

	batch := &QuoteBatch{
		Tickers:         make(map[int64]string),
		Duplicates:      m.dups,
		EntitiesCreated: m.companies.Stats().Created,
	}
	if len(m.drafts) == 0 {
		return batch, nil
	}

	seeds, err := m.seeds(ctx)
	if err != nil {
		return nil, err
	}

	obs := make([]Observation, len(m.drafts))
	for i, d := range m.drafts {
		obs[i] = Observation{Series: d.Ticker, Date: d.Date, Close: d.Close}
	}
	changes := PctChange(obs, seeds)

	for i, d := range m.drafts {
		id, ok := m.companies.ID(d.Ticker)
		if !ok {
			batch.Unresolved++
			continue
		}
		batch.Tickers[id] = d.Ticker
		batch.Quotes = append(batch.Quotes, &domain.Quote{
			CompanyID: id,
			Date:      d.Date,
			Open:      d.Open,
			Close:     d.Close,
			High:      d.High,
			Low:       d.Low,
			Volume:    d.Volume,
			PctChange: changes[i],
		})
	}

	sort.SliceStable(batch.Quotes, func(i, j int) bool {
		a, b := batch.Quotes[i], batch.Quotes[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return batch.Tickers[a.CompanyID] < batch.Tickers[b.CompanyID]
	})

	if batch.Unresolved > 0 {
		m.logger.Warn("Quotes dropped for unresolved companies", zap.Int("count", batch.Unresolved))
	}
	if batch.Duplicates > 0 {
		m.logger.Debug("Repeated quotes collapsed", zap.Int("count", batch.Duplicates))
	}
	m.drafts = nil
	m.staged = nil
	m.dups = 0
	return batch, nil
}

// seeds returns the last persisted close before the earliest draft, by ticker.
func (m *QuoteMaterializer) seeds(ctx context.Context) (map[string]float64, error) {
	if m.quotes == nil {
		return nil, nil
	}

	earliest := m.drafts[0].Date
	for _, d := range m.drafts[1:] {
		if d.Date.Before(earliest) {
			earliest = d.Date
		}
	}

	closes, err := m.quotes.LastCloses(ctx, earliest.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("load previous closes: %w", err)
	}

	seeds := make(map[string]float64)
	for _, d := range m.drafts {
		id, ok := m.companies.ID(d.Ticker)
		if !ok {
			continue
		}
		if c, ok := closes[id]; ok {
			seeds[d.Ticker] = c
		}
	}
	return seeds, nil
}
