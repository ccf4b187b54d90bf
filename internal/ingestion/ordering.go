package ingestion

import (
	"errors"
	"sort"
	"strings"
)

// ErrInvalidOrdering is returned when records are not properly ordered.
var ErrInvalidOrdering = errors.New("records are not in deterministic order")

// SortQuoteRecords orders quotes by (date ASC, ticker ASC).
func SortQuoteRecords(records []QuoteRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareQuotes(records[i], records[j]) < 0
	})
}

// SortPostRecords orders posts by (created_at ASC, uri ASC).
func SortPostRecords(records []PostRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return comparePosts(records[i], records[j]) < 0
	})
}

// ValidateQuoteOrdering checks that quotes are sorted.
// Equal keys are allowed; deduplication happens downstream.
func ValidateQuoteOrdering(records []QuoteRecord) error {
	for i := 1; i < len(records); i++ {
		if compareQuotes(records[i-1], records[i]) > 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// ValidatePostOrdering checks that posts are sorted.
func ValidatePostOrdering(records []PostRecord) error {
	for i := 1; i < len(records); i++ {
		if comparePosts(records[i-1], records[i]) > 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareQuotes returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (date ASC, ticker ASC)
func compareQuotes(a, b QuoteRecord) int {
	if !a.Date.Equal(b.Date) {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Ticker, b.Ticker)
}

// comparePosts orders by (created_at ASC, uri ASC).
func comparePosts(a, b PostRecord) int {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.URI, b.URI)
}
