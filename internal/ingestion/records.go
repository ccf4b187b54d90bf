package ingestion

import (
	"math"
	"strings"
	"time"

	"market-sentiment-lab/internal/domain"
)

// QuoteRecord is a coerced, immutable quote from the quotes feed.
type QuoteRecord struct {
	Ticker string
	Date   time.Time // UTC day
	Open   *float64
	Close  float64
	High   *float64
	Low    *float64
	Volume *float64
}

// Key returns the natural key of the record: ticker and day.
func (r QuoteRecord) Key() domain.RawQuoteKey {
	return domain.RawQuoteKey{Ticker: r.Ticker, Day: r.Date}
}

// PostRecord is a coerced, immutable post from the posts feed.
type PostRecord struct {
	Handle        string
	URI           string
	Text          string
	CreatedAt     time.Time
	Likes         int64
	Reposts       int64
	Replies       int64
	Engagement    *int64
	TextBlobScore *float64
	TextBlobLabel string
	VaderScore    *float64
	VaderLabel    string
}

// TotalEngagement returns the precomputed engagement, or likes + reposts + replies.
func (r PostRecord) TotalEngagement() int64 {
	if r.Engagement != nil {
		return *r.Engagement
	}
	return r.Likes + r.Reposts + r.Replies
}

// ParseQuote coerces a raw staged quote. It fails with a MalformedRecordError
// when the ticker, date or close price is missing or not a finite number.
func ParseQuote(raw *domain.RawQuote) (QuoteRecord, error) {
	ticker := strings.TrimSpace(raw.Ticker)
	if ticker == "" {
		return QuoteRecord{}, malformed("quote", "", "ticker", "is empty")
	}
	if raw.Date == nil || raw.Date.IsZero() {
		return QuoteRecord{}, malformed("quote", ticker, "date", "is missing")
	}
	if raw.Price == nil {
		return QuoteRecord{}, malformed("quote", ticker, "price", "is missing")
	}
	if !finite(*raw.Price) {
		return QuoteRecord{}, malformed("quote", ticker, "price", "is not a finite number")
	}

	rec := QuoteRecord{
		Ticker: ticker,
		Date:   domain.TruncateDay(*raw.Date),
		Close:  *raw.Price,
	}
	for _, f := range []struct {
		name string
		in   *float64
		out  **float64
	}{
		{"opening", raw.Opening, &rec.Open},
		{"max", raw.Max, &rec.High},
		{"min", raw.Min, &rec.Low},
		{"volume", raw.Volume, &rec.Volume},
	} {
		if f.in == nil {
			continue
		}
		if !finite(*f.in) {
			return QuoteRecord{}, malformed("quote", ticker, f.name, "is not a finite number")
		}
		v := *f.in
		*f.out = &v
	}
	return rec, nil
}

// ParsePost coerces a raw staged post. It fails with a MalformedRecordError
// when the uri, author or timestamp is missing, or a score is not finite.
func ParsePost(raw *domain.RawPost) (PostRecord, error) {
	uri := strings.TrimSpace(raw.URI)
	if uri == "" {
		return PostRecord{}, malformed("post", "", "uri", "is empty")
	}
	handle := strings.TrimSpace(raw.ActorHandle)
	if handle == "" {
		return PostRecord{}, malformed("post", uri, "actor_handle", "is empty")
	}
	if raw.CreatedAt == nil || raw.CreatedAt.IsZero() {
		return PostRecord{}, malformed("post", uri, "created_at", "is missing")
	}
	if raw.Likes < 0 || raw.Reposts < 0 || raw.Replies < 0 {
		return PostRecord{}, malformed("post", uri, "engagement", "is negative")
	}

	rec := PostRecord{
		Handle:        handle,
		URI:           uri,
		Text:          raw.Text,
		CreatedAt:     raw.CreatedAt.UTC(),
		Likes:         raw.Likes,
		Reposts:       raw.Reposts,
		Replies:       raw.Replies,
		TextBlobLabel: strings.TrimSpace(raw.TextBlobLabel),
		VaderLabel:    strings.TrimSpace(raw.VaderLabel),
	}
	if raw.Engagement != nil {
		e := *raw.Engagement
		rec.Engagement = &e
	}
	if raw.TextBlobScore != nil {
		if !finite(*raw.TextBlobScore) {
			return PostRecord{}, malformed("post", uri, "textblob_score", "is not a finite number")
		}
		s := *raw.TextBlobScore
		rec.TextBlobScore = &s
	}
	if raw.VaderScore != nil {
		if !finite(*raw.VaderScore) {
			return PostRecord{}, malformed("post", uri, "vader_score", "is not a finite number")
		}
		s := *raw.VaderScore
		rec.VaderScore = &s
	}
	return rec, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
