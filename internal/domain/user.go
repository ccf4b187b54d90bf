package domain

import "time"

// Placeholder attributes assigned to users created during integration.
const (
	DefaultUserType = "others"
	DefaultLanguage = "en"
)

// User is a social-media account that authored notes.
// Corresponds to users table in PostgreSQL.
type User struct {
	ID        int64  // BIGSERIAL primary key
	Handle    string // natural key, UNIQUE
	Name      string // placeholder: handle until enriched
	UserType  string // FK to user_types.code
	Verified  bool
	Followers int64
	Language  string
	CreatedAt time.Time
}

// NewPlaceholderUser builds a user with placeholder attributes for a handle
// seen for the first time.
func NewPlaceholderUser(handle string) *User {
	return &User{
		Handle:   handle,
		Name:     handle,
		UserType: DefaultUserType,
		Language: DefaultLanguage,
	}
}

// NaturalKey returns the handle.
func (u *User) NaturalKey() string { return u.Handle }

// Identity returns the surrogate ID (0 until persisted).
func (u *User) Identity() int64 { return u.ID }
