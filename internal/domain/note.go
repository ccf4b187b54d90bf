package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidNote is returned by Note.Validate.
var ErrInvalidNote = errors.New("invalid note")

// Note is a post authored by a user, with its sentiment.
// Corresponds to notes table in PostgreSQL. Unique on url.
type Note struct {
	ID             int64 // BIGSERIAL primary key
	UserID         int64 // FK to users
	URL            string
	PublishedAt    time.Time
	Content        string
	Engagement     int64    // likes + reposts + replies
	SentimentScore *float64 // [-1, 1], nil when no scorer produced a value
	SentimentLabel string   // Positive | Negative | Neutral
	CreatedAt      time.Time
}

// Validate checks the fields the notes table requires.
func (n *Note) Validate() error {
	if n.UserID <= 0 {
		return fmt.Errorf("%w: missing user", ErrInvalidNote)
	}
	if n.URL == "" {
		return fmt.Errorf("%w: missing url", ErrInvalidNote)
	}
	if n.PublishedAt.IsZero() {
		return fmt.Errorf("%w: missing published_at", ErrInvalidNote)
	}
	if n.SentimentScore != nil && (!finite(*n.SentimentScore) || *n.SentimentScore < -1 || *n.SentimentScore > 1) {
		return fmt.Errorf("%w: sentiment score %v", ErrInvalidNote, *n.SentimentScore)
	}
	return nil
}
