package storage

import (
	"context"
	"time"

	"market-sentiment-lab/internal/domain"
)

// CompanyStore provides access to companies storage.
type CompanyStore interface {
	// Insert adds a company and sets its ID. Returns ErrDuplicateKey if the ticker exists.
	Insert(ctx context.Context, c *domain.Company) error

	// InsertBulk adds multiple companies atomically. Fails entire batch on any duplicate.
	// IDs are set only after the batch commits.
	InsertBulk(ctx context.Context, companies []*domain.Company) error

	// GetByNaturalKey retrieves a company by ticker. Returns ErrNotFound if not exists.
	GetByNaturalKey(ctx context.Context, ticker string) (*domain.Company, error)

	// LoadNaturalKeys returns every ticker with its ID (for warming the in-memory cache).
	LoadNaturalKeys(ctx context.Context) (map[string]int64, error)

	// Count returns the number of companies.
	Count(ctx context.Context) (int, error)
}

// UserStore provides access to users storage.
type UserStore interface {
	// Insert adds a user and sets its ID. Returns ErrDuplicateKey if the handle exists.
	Insert(ctx context.Context, u *domain.User) error

	// InsertBulk adds multiple users atomically. Fails entire batch on any duplicate.
	// IDs are set only after the batch commits.
	InsertBulk(ctx context.Context, users []*domain.User) error

	// GetByNaturalKey retrieves a user by handle. Returns ErrNotFound if not exists.
	GetByNaturalKey(ctx context.Context, handle string) (*domain.User, error)

	// LoadNaturalKeys returns every handle with its ID (for warming the in-memory cache).
	LoadNaturalKeys(ctx context.Context) (map[string]int64, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int, error)
}

// QuoteStore provides access to quotes storage.
type QuoteStore interface {
	// Insert adds a quote. Returns ErrDuplicateKey if (company_id, date) exists.
	Insert(ctx context.Context, q *domain.Quote) error

	// InsertBulk adds multiple quotes atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, quotes []*domain.Quote) error

	// ExistingKeys returns the keys of quotes for the given companies with date in [from, to].
	ExistingKeys(ctx context.Context, companyIDs []int64, from, to time.Time) ([]domain.QuoteKey, error)

	// LastCloses returns, per company, the close of the latest quote dated on or before `at`.
	LastCloses(ctx context.Context, at time.Time) (map[int64]float64, error)

	// GetByCompanyID retrieves all quotes of a company, ordered by date ASC.
	GetByCompanyID(ctx context.Context, companyID int64) ([]*domain.Quote, error)

	// Count returns the number of quotes.
	Count(ctx context.Context) (int, error)
}

// NoteStore provides access to notes storage.
type NoteStore interface {
	// Insert adds a note. Returns ErrDuplicateKey if url exists.
	Insert(ctx context.Context, n *domain.Note) error

	// InsertBulk adds multiple notes atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, notes []*domain.Note) error

	// LoadURLs returns the url of every stored note.
	LoadURLs(ctx context.Context) ([]string, error)

	// GetByUserID retrieves all notes of a user, ordered by published_at ASC.
	GetByUserID(ctx context.Context, userID int64) ([]*domain.Note, error)

	// Count returns the number of notes.
	Count(ctx context.Context) (int, error)
}

// WatermarkStore answers the aggregate query behind incremental runs.
type WatermarkStore interface {
	// MaxTimestamp returns MAX(target.Column) over target.Table.
	// ok is false when the table is empty. Returns ErrUnknownTarget for
	// unregistered targets.
	MaxTimestamp(ctx context.Context, target Target) (ts time.Time, ok bool, err error)
}

// StagingQuoteStore provides access to the raw quotes feed (staging_quotes).
type StagingQuoteStore interface {
	// Insert adds a raw quote. Returns ErrDuplicateKey if (ticker, day) exists.
	Insert(ctx context.Context, q *domain.RawQuote) error

	// InsertBulk adds multiple raw quotes atomically.
	InsertBulk(ctx context.Context, quotes []*domain.RawQuote) error

	// FetchSince returns raw quotes dated strictly after since (all when since is nil),
	// ordered by date ASC, id ASC.
	FetchSince(ctx context.Context, since *time.Time) ([]*domain.RawQuote, error)

	// LoadKeys returns the (ticker, day) key of every staged quote.
	LoadKeys(ctx context.Context) ([]domain.RawQuoteKey, error)
}

// StagingPostStore provides access to the raw posts feed (staging_posts).
type StagingPostStore interface {
	// Insert adds a raw post. Returns ErrDuplicateKey if uri exists.
	Insert(ctx context.Context, p *domain.RawPost) error

	// InsertBulk adds multiple raw posts atomically.
	InsertBulk(ctx context.Context, posts []*domain.RawPost) error

	// FetchSince returns raw posts created strictly after since (all when since is nil),
	// ordered by created_at ASC, id ASC.
	FetchSince(ctx context.Context, since *time.Time) ([]*domain.RawPost, error)

	// LoadURIs returns the uri of every staged post.
	LoadURIs(ctx context.Context) ([]string, error)
}

// QuoteSeriesStore provides access to the analytics quote series.
type QuoteSeriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (ticker, date).
	InsertBulk(ctx context.Context, points []*domain.QuotePoint) error

	// GetByTicker retrieves all points for a ticker, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.QuotePoint, error)
}
