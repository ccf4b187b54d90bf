package storage

// Target names a table and the timestamp column a watermark is computed over.
type Target struct {
	Table  string
	Column string
}

func (t Target) String() string { return t.Table + "." + t.Column }

// Registered watermark targets.
var (
	QuotesByDate          = Target{Table: "quotes", Column: "date"}
	NotesByPublishedAt    = Target{Table: "notes", Column: "published_at"}
	StagingQuotesByDate   = Target{Table: "staging_quotes", Column: "date"}
	StagingPostsCreatedAt = Target{Table: "staging_posts", Column: "created_at"}
)

// KnownTarget reports whether t is one of the registered targets.
func KnownTarget(t Target) bool {
	switch t {
	case QuotesByDate, NotesByPublishedAt, StagingQuotesByDate, StagingPostsCreatedAt:
		return true
	}
	return false
}
