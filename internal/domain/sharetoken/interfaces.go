package sharetoken

import (
	"context"
	"time"
)

// Repository provides persistence for share tokens.
type Repository interface {
	Create(ctx context.Context, t *ShareToken) error
	// GetActiveByToken resolves a raw token value iff the row is active.
	GetActiveByToken(ctx context.Context, token string, now time.Time) (*ShareToken, error)
	ListByProject(ctx context.Context, projectID string) ([]ShareToken, error)
	CountActive(ctx context.Context, projectID string, now time.Time) (int, error)
	// Revoke sets revoked_at; the row is kept for audit.
	Revoke(ctx context.Context, id, ownerID string, now time.Time) error
}
