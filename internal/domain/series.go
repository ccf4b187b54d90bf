package domain

import "time"

// QuotePoint is a denormalized quote row in the analytics series.
// Corresponds to quote_series table in ClickHouse.
type QuotePoint struct {
	Ticker    string
	Date      time.Time
	Close     float64
	Volume    float64
	PctChange float64 // 0 when unknown
	HasChange bool
}
