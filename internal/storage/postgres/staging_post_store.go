package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// StagingPostStore implements storage.StagingPostStore using PostgreSQL.
type StagingPostStore struct {
	pool *Pool
}

// NewStagingPostStore creates a new StagingPostStore.
func NewStagingPostStore(pool *Pool) *StagingPostStore {
	return &StagingPostStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StagingPostStore = (*StagingPostStore)(nil)

const insertStagingPostQuery = `
	INSERT INTO staging_posts (
		actor_handle, uri, text, created_at, likes, reposts, replies, engagement,
		textblob_score, textblob_label, vader_score, vader_label
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id, staged_at
`

func stagingPostArgs(p *domain.RawPost) []any {
	return []any{
		p.ActorHandle,
		p.URI,
		p.Text,
		p.CreatedAt,
		p.Likes,
		p.Reposts,
		p.Replies,
		p.Engagement,
		p.TextBlobScore,
		p.TextBlobLabel,
		p.VaderScore,
		p.VaderLabel,
	}
}

// Insert adds a raw post. Returns ErrDuplicateKey if uri exists.
func (s *StagingPostStore) Insert(ctx context.Context, p *domain.RawPost) error {
	var id int64
	var stagedAt time.Time
	if err := s.pool.QueryRow(ctx, insertStagingPostQuery, stagingPostArgs(p)...).Scan(&id, &stagedAt); err != nil {
		return classifyWriteError("insert staging post", err)
	}
	p.ID, p.StagedAt = id, stagedAt
	return nil
}

// InsertBulk adds multiple raw posts atomically.
func (s *StagingPostStore) InsertBulk(ctx context.Context, posts []*domain.RawPost) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, len(posts))
	staged := make([]time.Time, len(posts))
	for i, p := range posts {
		if err := tx.QueryRow(ctx, insertStagingPostQuery, stagingPostArgs(p)...).Scan(&ids[i], &staged[i]); err != nil {
			return classifyWriteError("insert staging post in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, p := range posts {
		p.ID, p.StagedAt = ids[i], staged[i]
	}
	return nil
}

// FetchSince returns raw posts created strictly after since (all when since is nil),
// ordered by created_at ASC, id ASC.
func (s *StagingPostStore) FetchSince(ctx context.Context, since *time.Time) ([]*domain.RawPost, error) {
	query := `
		SELECT id, COALESCE(actor_handle, ''), uri, COALESCE(text, ''), created_at,
			COALESCE(likes, 0), COALESCE(reposts, 0), COALESCE(replies, 0), engagement,
			textblob_score, COALESCE(textblob_label, ''), vader_score, COALESCE(vader_label, ''), staged_at
		FROM staging_posts
		WHERE $1::timestamptz IS NULL OR created_at > $1
		ORDER BY created_at ASC NULLS LAST, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("fetch staging posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.RawPost
	for rows.Next() {
		var p domain.RawPost
		err := rows.Scan(
			&p.ID,
			&p.ActorHandle,
			&p.URI,
			&p.Text,
			&p.CreatedAt,
			&p.Likes,
			&p.Reposts,
			&p.Replies,
			&p.Engagement,
			&p.TextBlobScore,
			&p.TextBlobLabel,
			&p.VaderScore,
			&p.VaderLabel,
			&p.StagedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan staging post row: %w", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging post rows: %w", err)
	}
	return posts, nil
}

// LoadURIs returns the uri of every staged post.
func (s *StagingPostStore) LoadURIs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT uri FROM staging_posts`)
	if err != nil {
		return nil, fmt.Errorf("load staging post uris: %w", err)
	}
	uris, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect staging post uris: %w", err)
	}
	return uris, nil
}
