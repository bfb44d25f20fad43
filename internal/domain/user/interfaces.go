package user

import (
	"context"
	"time"
)

// Repository provides persistence for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// SessionRepository provides persistence for bearer sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	// GetActive returns the session's user iff the session has not expired.
	GetActive(ctx context.Context, token string, now time.Time) (*User, error)
	Delete(ctx context.Context, token string) error
}

// APIKeyRepository validates API keys stored as hashes.
type APIKeyRepository interface {
	Create(ctx context.Context, keyHash, userID, description string) error
	// GetUser returns the key's user and stamps last_used.
	GetUser(ctx context.Context, keyHash string) (*User, error)
}
