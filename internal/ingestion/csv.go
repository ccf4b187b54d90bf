package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"market-sentiment-lab/internal/domain"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required csv column")

// Quote CSV columns, as exported by the market data extractor.
var quoteColumns = []string{"Date", "Price", "Volume", "Opening", "Min", "Max", "ticker"}

// Post CSV columns, as exported by the social feed extractor.
var postColumns = []string{"actor_handle", "uri", "text", "created_at", "likes", "reposts", "replies"}

// timestamp layouts accepted in CSV date columns, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// CSVRowError reports a CSV line that could not be read into a raw row.
type CSVRowError struct {
	Line int
	Err  error
}

func (e *CSVRowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *CSVRowError) Unwrap() error { return e.Err }

type csvTable struct {
	r     *csv.Reader
	index map[string]int
	line  int
}

func newCSVTable(r io.Reader, required []string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return &csvTable{r: cr, index: index, line: 1}, nil
}

// next returns the next row, or io.EOF.
func (t *csvTable) next() ([]string, error) {
	row, err := t.r.Read()
	t.line++
	return row, err
}

func (t *csvTable) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadQuotesCSV reads raw quotes. Unparseable numbers become nil and rows
// with an unparseable date keep a nil Date; coercion decides later. Rows
// that cannot be read at all are returned as CSVRowErrors.
func ReadQuotesCSV(r io.Reader) ([]*domain.RawQuote, []error, error) {
	t, err := newCSVTable(r, quoteColumns)
	if err != nil {
		return nil, nil, err
	}

	var rows []*domain.RawQuote
	var rowErrs []error
	for {
		row, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, &CSVRowError{Line: t.line, Err: err})
			continue
		}

		rows = append(rows, &domain.RawQuote{
			Ticker:         t.get(row, "ticker"),
			Date:           parseTime(t.get(row, "Date")),
			Price:          parseFloat(t.get(row, "Price")),
			Opening:        parseFloat(t.get(row, "Opening")),
			Min:            parseFloat(t.get(row, "Min")),
			Max:            parseFloat(t.get(row, "Max")),
			Volume:         parseFloat(t.get(row, "Volume")),
			Settlement:     t.get(row, "settlement"),
			InstrumentType: t.get(row, "instrument_type"),
			Currency:       t.get(row, "currency"),
		})
	}
	return rows, rowErrs, nil
}

// ReadPostsCSV reads raw posts. The optional columns engagement, sentiment
// (TextBlob), sentiment_vader and interpretacion_sentimiento (a label that
// overrides both lexicon labels) are honoured when present.
func ReadPostsCSV(r io.Reader) ([]*domain.RawPost, []error, error) {
	t, err := newCSVTable(r, postColumns)
	if err != nil {
		return nil, nil, err
	}

	var rows []*domain.RawPost
	var rowErrs []error
	for {
		row, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, &CSVRowError{Line: t.line, Err: err})
			continue
		}

		p := &domain.RawPost{
			ActorHandle:   t.get(row, "actor_handle"),
			URI:           t.get(row, "uri"),
			Text:          t.get(row, "text"),
			CreatedAt:     parseTime(t.get(row, "created_at")),
			Likes:         parseCount(t.get(row, "likes")),
			Reposts:       parseCount(t.get(row, "reposts")),
			Replies:       parseCount(t.get(row, "replies")),
			TextBlobScore: parseFloat(t.get(row, "sentiment")),
			VaderScore:    parseFloat(t.get(row, "sentiment_vader")),
		}
		if v := t.get(row, "engagement"); v != "" {
			e := parseCount(v)
			p.Engagement = &e
		}
		if label := t.get(row, "interpretacion_sentimiento"); label != "" {
			p.TextBlobLabel = label
			p.VaderLabel = label
		}
		rows = append(rows, p)
	}
	return rows, rowErrs, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return nil
	}
	return &f
}

// parseCount coerces a counter; unparseable values count as zero.
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) {
		return int64(f)
	}
	return 0
}

// CSVQuoteSource serves a quotes CSV file as a QuoteSource.
type CSVQuoteSource struct {
	Path string
}

// FetchQuotes implements QuoteSource. Rows without a date are kept only
// when since is nil.
func (s *CSVQuoteSource) FetchQuotes(_ context.Context, since *time.Time) ([]*domain.RawQuote, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open quotes csv: %w", err)
	}
	defer f.Close()

	rows, _, err := ReadQuotesCSV(f)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return rows, nil
	}

	out := rows[:0]
	for _, r := range rows {
		if r.Date != nil && r.Date.After(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CSVPostSource serves a posts CSV file as a PostSource.
type CSVPostSource struct {
	Path string
}

// FetchPosts implements PostSource.
func (s *CSVPostSource) FetchPosts(_ context.Context, since *time.Time) ([]*domain.RawPost, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open posts csv: %w", err)
	}
	defer f.Close()

	rows, _, err := ReadPostsCSV(f)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return rows, nil
	}

	out := rows[:0]
	for _, r := range rows {
		if r.CreatedAt != nil && r.CreatedAt.After(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}
