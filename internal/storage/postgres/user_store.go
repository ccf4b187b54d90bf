package postgres

import (
	"context"
	"fmt"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

const insertUserQuery = `
	INSERT INTO users (handle, name, user_type, verified, followers, language)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
`

// Insert adds a user and sets its ID. Returns ErrDuplicateKey if the handle exists.
func (s *UserStore) Insert(ctx context.Context, u *domain.User) error {
	var id int64
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, insertUserQuery,
		u.Handle,
		u.Name,
		u.UserType,
		u.Verified,
		u.Followers,
		u.Language,
	).Scan(&id, &createdAt)
	if err != nil {
		return classifyWriteError("insert user", err)
	}
	u.ID, u.CreatedAt = id, createdAt
	return nil
}

// InsertBulk adds multiple users atomically. Fails entire batch on any duplicate.
func (s *UserStore) InsertBulk(ctx context.Context, users []*domain.User) error {
	if len(users) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, len(users))
	created := make([]time.Time, len(users))
	for i, u := range users {
		err := tx.QueryRow(ctx, insertUserQuery,
			u.Handle,
			u.Name,
			u.UserType,
			u.Verified,
			u.Followers,
			u.Language,
		).Scan(&ids[i], &created[i])
		if err != nil {
			return classifyWriteError("insert user in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, u := range users {
		u.ID, u.CreatedAt = ids[i], created[i]
	}
	return nil
}

// GetByNaturalKey retrieves a user by handle. Returns ErrNotFound if not exists.
func (s *UserStore) GetByNaturalKey(ctx context.Context, handle string) (*domain.User, error) {
	query := `
		SELECT id, handle, name, user_type, verified, followers, language, created_at
		FROM users
		WHERE handle = $1
	`

	var u domain.User
	err := s.pool.QueryRow(ctx, query, handle).Scan(
		&u.ID,
		&u.Handle,
		&u.Name,
		&u.UserType,
		&u.Verified,
		&u.Followers,
		&u.Language,
		&u.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by handle: %w", err)
	}
	return &u, nil
}

// LoadNaturalKeys returns every handle with its ID.
func (s *UserStore) LoadNaturalKeys(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT handle, id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("load user handles: %w", err)
	}
	return scanNaturalKeys(rows, "user")
}

// Count returns the number of users.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	return countRows(ctx, s.pool, "users")
}
