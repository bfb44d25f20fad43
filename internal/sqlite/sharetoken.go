package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/repository"
)

// ShareTokenRepository implements sharetoken.Repository for SQLite.
type ShareTokenRepository struct {
	db *DB
}

// NewShareTokenRepository creates a new ShareTokenRepository.
func NewShareTokenRepository(db *DB) *ShareTokenRepository {
	return &ShareTokenRepository{db: db}
}

// Create inserts a share token row.
func (r *ShareTokenRepository) Create(ctx context.Context, t *sharetoken.ShareToken) error {
	query := `
		INSERT INTO share_tokens (id, project_id, owner_id, token, name, duration, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.ProjectID, t.OwnerID, t.Token, t.Name, t.Duration, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create share token: %w", err)
	}
	return nil
}

// GetActiveByToken resolves a raw token value iff it is unrevoked and
// unexpired.
func (r *ShareTokenRepository) GetActiveByToken(ctx context.Context, token string, now time.Time) (*sharetoken.ShareToken, error) {
	query := `
		SELECT id, project_id, owner_id, token, name, duration, expires_at, revoked_at, created_at
		FROM share_tokens
		WHERE token = ? AND revoked_at IS NULL AND expires_at > ?
	`
	return r.scanToken(r.db.QueryRowContext(ctx, query, token, now))
}

func (r *ShareTokenRepository) scanToken(row *sql.Row) (*sharetoken.ShareToken, error) {
	var t sharetoken.ShareToken
	var revokedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.OwnerID, &t.Token, &t.Name, &t.Duration,
		&t.ExpiresAt, &revokedAt, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share token: %w", err)
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return &t, nil
}

// ListByProject returns every token ever issued for the project.
func (r *ShareTokenRepository) ListByProject(ctx context.Context, projectID string) ([]sharetoken.ShareToken, error) {
	query := `
		SELECT id, project_id, owner_id, token, name, duration, expires_at, revoked_at, created_at
		FROM share_tokens
		WHERE project_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share tokens: %w", err)
	}
	defer rows.Close()

	var tokens []sharetoken.ShareToken
	for rows.Next() {
		var t sharetoken.ShareToken
		var revokedAt sql.NullTime
		err := rows.Scan(
			&t.ID, &t.ProjectID, &t.OwnerID, &t.Token, &t.Name, &t.Duration,
			&t.ExpiresAt, &revokedAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share token: %w", err)
		}
		if revokedAt.Valid {
			t.RevokedAt = &revokedAt.Time
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share token rows: %w", err)
	}
	return tokens, nil
}

// CountActive counts unrevoked, unexpired tokens for the project.
func (r *ShareTokenRepository) CountActive(ctx context.Context, projectID string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM share_tokens
		WHERE project_id = ? AND revoked_at IS NULL AND expires_at > ?
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, projectID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count share tokens: %w", err)
	}
	return count, nil
}

// Revoke marks the owner's token dead. Revoking an already-revoked token is
// a not-found: the row no longer matches.
func (r *ShareTokenRepository) Revoke(ctx context.Context, id, ownerID string, now time.Time) error {
	query := `
		UPDATE share_tokens
		SET revoked_at = ?
		WHERE id = ? AND owner_id = ? AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, now, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to revoke share token: %w", err)
	}
	return requireRow(result)
}
