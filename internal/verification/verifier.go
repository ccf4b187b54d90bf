// Package verification replays the percent-change fold over the persisted
// quote series and reports every stored value that diverges from it.
package verification

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/materialize"
	"market-sentiment-lab/internal/storage"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Date     time.Time
	Field    string
	Expected *float64 // replayed value
	Actual   *float64 // stored value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s %s: stored %s, replayed %s",
		d.Date.Format(time.DateOnly), d.Field, format(d.Actual), format(d.Expected))
}

// VerificationResult contains the result of verifying one company's series.
type VerificationResult struct {
	Ticker      string
	Quotes      int
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalSeries     int
	MatchedSeries   int
	DivergentSeries int
	Results         []VerificationResult
}

// QuoteVerifier checks the stored percent changes of the quotes table.
type QuoteVerifier struct {
	companies storage.CompanyStore
	quotes    storage.QuoteStore
}

// NewQuoteVerifier creates a verifier.
func NewQuoteVerifier(companies storage.CompanyStore, quotes storage.QuoteStore) *QuoteVerifier {
	return &QuoteVerifier{companies: companies, quotes: quotes}
}

// VerifyCompany replays the series of one ticker.
func (v *QuoteVerifier) VerifyCompany(ctx context.Context, ticker string) (*VerificationResult, error) {
	company, err := v.companies.GetByNaturalKey(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get company %q: %w", ticker, err)
	}
	quotes, err := v.quotes.GetByCompanyID(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("get quotes of %q: %w", ticker, err)
	}

	result := &VerificationResult{Ticker: ticker, Quotes: len(quotes)}
	result.Divergences = CompareSeries(ticker, quotes)
	result.Match = len(result.Divergences) == 0
	return result, nil
}

// VerifyAll replays every company's series, in ticker order.
func (v *QuoteVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	keys, err := v.companies.LoadNaturalKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	tickers := make([]string, 0, len(keys))
	for t := range keys {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	report := &VerificationReport{}
	for _, t := range tickers {
		res, err := v.VerifyCompany(ctx, t)
		if err != nil {
			return nil, err
		}
		report.TotalSeries++
		if res.Match {
			report.MatchedSeries++
		} else {
			report.DivergentSeries++
		}
		report.Results = append(report.Results, *res)
	}
	return report, nil
}

// CompareSeries recomputes the percent change of a company's quotes and
// returns the divergences from the stored values.
func CompareSeries(ticker string, quotes []*domain.Quote) []FieldDivergence {
	obs := make([]materialize.Observation, len(quotes))
	for i, q := range quotes {
		obs[i] = materialize.Observation{Series: ticker, Date: q.Date, Close: q.Close}
	}
	replayed := materialize.PctChange(obs, nil)

	var divergences []FieldDivergence
	for i, q := range quotes {
		if !floatPtrEquals(q.PctChange, replayed[i]) {
			divergences = append(divergences, FieldDivergence{
				Date:     q.Date,
				Field:    "pct_change",
				Expected: replayed[i],
				Actual:   q.PctChange,
			})
		}
	}
	return divergences
}

// floatEquals compares two float64 values with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}

func format(f *float64) string {
	if f == nil {
		return "null"
	}
	return fmt.Sprintf("%.6f", *f)
}
