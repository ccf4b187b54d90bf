package domain

import "time"

// Company is a listed company referenced by quotes.
// Corresponds to companies table in PostgreSQL.
type Company struct {
	ID        int64    // BIGSERIAL primary key
	Ticker    string   // natural key, UNIQUE
	Name      string   // placeholder: ticker until enriched
	Sector    *string  // nullable, enriched out of band
	MarketCap *float64 // nullable, enriched out of band
	CreatedAt time.Time
}

// NewPlaceholderCompany builds a company with placeholder attributes for a ticker
// seen for the first time.
func NewPlaceholderCompany(ticker string) *Company {
	return &Company{
		Ticker: ticker,
		Name:   ticker,
	}
}

// NaturalKey returns the ticker.
func (c *Company) NaturalKey() string { return c.Ticker }

// Identity returns the surrogate ID (0 until persisted).
func (c *Company) Identity() int64 { return c.ID }
