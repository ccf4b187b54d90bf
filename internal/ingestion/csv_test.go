package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotesCSV = `Date,Price,Volume,Opening,Min,Max,ticker,settlement,instrument_type,currency,variacion_diaria
2024-01-02,100,1000,99,98,101,GGAL,A-48HS,ACCIONES,ARS,0
2024-01-03,110,1100,100,99,111,GGAL,A-48HS,ACCIONES,ARS,10
2024-01-04,abc,900,,,,GGAL,A-48HS,ACCIONES,ARS,
not-a-date,99,900,,,,YPF,A-48HS,ACCIONES,ARS,
`

const postsCSV = `actor_handle,uri,text,created_at,likes,reposts,replies,sentiment,sentiment_vader,interpretacion_sentimiento
alice.bsky.social,at://alice/1,"hello, market",2024-03-01T12:00:00Z,3,1,0,0.2,0.5,Positivo
bob.bsky.social,at://bob/1,meh,2024-03-01 13:00:00+00:00,x,0,0,,,
`

func TestReadQuotesCSV(t *testing.T) {
	rows, rowErrs, err := ReadQuotesCSV(strings.NewReader(quotesCSV))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 4)

	assert.Equal(t, "GGAL", rows[0].Ticker)
	require.NotNil(t, rows[0].Date)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *rows[0].Date)
	assert.Equal(t, 100.0, *rows[0].Price)
	assert.Equal(t, "ARS", rows[0].Currency)

	assert.Nil(t, rows[2].Price, "non-numeric price is kept as missing")
	assert.Nil(t, rows[3].Date, "unparseable date is kept as missing")

	_, err = ParseQuote(rows[2])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadQuotesCSV_MissingColumn(t *testing.T) {
	_, _, err := ReadQuotesCSV(strings.NewReader("Date,Price\n2024-01-02,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadPostsCSV(t *testing.T) {
	rows, rowErrs, err := ReadPostsCSV(strings.NewReader(postsCSV))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	alice := rows[0]
	assert.Equal(t, "hello, market", alice.Text)
	assert.Equal(t, int64(3), alice.Likes)
	require.NotNil(t, alice.VaderScore)
	assert.Equal(t, 0.5, *alice.VaderScore)
	assert.Equal(t, "Positivo", alice.VaderLabel)
	assert.Nil(t, alice.Engagement)

	bob := rows[1]
	require.NotNil(t, bob.CreatedAt)
	assert.Equal(t, 13, bob.CreatedAt.Hour())
	assert.Zero(t, bob.Likes, "unparseable counters coerce to zero")
	assert.Nil(t, bob.TextBlobScore)
}

func TestCSVQuoteSource_FetchSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.csv")
	require.NoError(t, os.WriteFile(path, []byte(quotesCSV), 0o600))

	src := &CSVQuoteSource{Path: path}
	since := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	rows, err := src.FetchQuotes(context.Background(), &since)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "strictly after the watermark, dateless rows dropped")
}
