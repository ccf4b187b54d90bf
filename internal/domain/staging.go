package domain

import "time"

// RawQuote is a market quote as pulled from the quotes feed.
// Corresponds to staging_quotes table. Fields are nullable because the
// feed (and CSV imports) can carry gaps.
type RawQuote struct {
	ID             int64
	Ticker         string
	Date           *time.Time
	Price          *float64 // close
	Opening        *float64
	Min            *float64
	Max            *float64
	Volume         *float64
	Settlement     string
	InstrumentType string
	Currency       string
	CreatedAt      time.Time
}

// RawQuoteKey identifies a staged quote: one row per ticker and day.
type RawQuoteKey struct {
	Ticker string
	Day    time.Time
}

// Key returns the staging natural key. Rows without a date have a zero day.
func (r *RawQuote) Key() RawQuoteKey {
	k := RawQuoteKey{Ticker: r.Ticker}
	if r.Date != nil {
		k.Day = TruncateDay(*r.Date)
	}
	return k
}

// RawPost is a social-media post as pulled from an author feed, with the
// lexicon sentiment scores computed at extraction time.
// Corresponds to staging_posts table. Unique on uri.
type RawPost struct {
	ID            int64
	ActorHandle   string
	URI           string
	Text          string
	CreatedAt     *time.Time
	Likes         int64
	Reposts       int64
	Replies       int64
	Engagement    *int64
	TextBlobScore *float64
	TextBlobLabel string
	VaderScore    *float64
	VaderLabel    string
	StagedAt      time.Time
}
