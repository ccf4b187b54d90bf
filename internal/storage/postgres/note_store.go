package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// NoteStore implements storage.NoteStore using PostgreSQL.
type NoteStore struct {
	pool *Pool
}

// NewNoteStore creates a new NoteStore.
func NewNoteStore(pool *Pool) *NoteStore {
	return &NoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NoteStore = (*NoteStore)(nil)

const insertNoteQuery = `
	INSERT INTO notes (
		user_id, url, published_at, content, engagement, sentiment_score, sentiment_label
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at
`

func noteArgs(n *domain.Note) []any {
	return []any{
		n.UserID,
		n.URL,
		n.PublishedAt,
		n.Content,
		n.Engagement,
		n.SentimentScore,
		n.SentimentLabel,
	}
}

// Insert adds a note. Returns ErrDuplicateKey if url exists.
func (s *NoteStore) Insert(ctx context.Context, n *domain.Note) error {
	var id int64
	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, insertNoteQuery, noteArgs(n)...).Scan(&id, &createdAt); err != nil {
		return classifyWriteError("insert note", err)
	}
	n.ID, n.CreatedAt = id, createdAt
	return nil
}

// InsertBulk adds multiple notes atomically. Fails entire batch on any duplicate.
func (s *NoteStore) InsertBulk(ctx context.Context, notes []*domain.Note) error {
	if len(notes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, len(notes))
	created := make([]time.Time, len(notes))
	for i, n := range notes {
		if err := tx.QueryRow(ctx, insertNoteQuery, noteArgs(n)...).Scan(&ids[i], &created[i]); err != nil {
			return classifyWriteError("insert note in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, n := range notes {
		n.ID, n.CreatedAt = ids[i], created[i]
	}
	return nil
}

// LoadURLs returns the url of every stored note.
func (s *NoteStore) LoadURLs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("load note urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect note urls: %w", err)
	}
	return urls, nil
}

// GetByUserID retrieves all notes of a user, ordered by published_at ASC.
func (s *NoteStore) GetByUserID(ctx context.Context, userID int64) ([]*domain.Note, error) {
	query := `
		SELECT id, user_id, url, published_at, content, engagement, sentiment_score, sentiment_label, created_at
		FROM notes
		WHERE user_id = $1
		ORDER BY published_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get notes by user id: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var n domain.Note
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.URL,
			&n.PublishedAt,
			&n.Content,
			&n.Engagement,
			&n.SentimentScore,
			&n.SentimentLabel,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}
	return notes, nil
}

// Count returns the number of notes.
func (s *NoteStore) Count(ctx context.Context) (int, error) {
	return countRows(ctx, s.pool, "notes")
}
