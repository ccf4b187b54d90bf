package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidQuote is returned by Quote.Validate.
var ErrInvalidQuote = errors.New("invalid quote")

// Quote is a daily price observation for a company.
// Corresponds to quotes table in PostgreSQL. Unique on (company_id, date).
type Quote struct {
	ID        int64     // BIGSERIAL primary key
	CompanyID int64     // FK to companies
	Date      time.Time // trading day, UTC midnight
	Open      *float64
	Close     float64
	High      *float64
	Low       *float64
	Volume    *float64
	PctChange *float64 // close-to-close change in percent, nil for the first observation
	CreatedAt time.Time
}

// QuoteKey is the natural key of a persisted quote.
type QuoteKey struct {
	CompanyID int64
	Date      time.Time
}

// Key returns the natural key of the quote.
func (q *Quote) Key() QuoteKey {
	return QuoteKey{CompanyID: q.CompanyID, Date: q.Date.UTC()}
}

// Validate checks that every numeric field is a finite number.
func (q *Quote) Validate() error {
	if q.CompanyID <= 0 {
		return fmt.Errorf("%w: missing company", ErrInvalidQuote)
	}
	if q.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidQuote)
	}
	if !finite(q.Close) {
		return fmt.Errorf("%w: close price %v", ErrInvalidQuote, q.Close)
	}
	for name, v := range map[string]*float64{"open": q.Open, "high": q.High, "low": q.Low, "volume": q.Volume, "pct_change": q.PctChange} {
		if v != nil && !finite(*v) {
			return fmt.Errorf("%w: %s %v", ErrInvalidQuote, name, *v)
		}
	}
	return nil
}

// TruncateDay returns t as a UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
