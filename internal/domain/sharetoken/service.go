package sharetoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/perchhq/perch/internal/auth/token"
	"github.com/perchhq/perch/internal/repository"
)

// MaxActivePerProject bounds how many unexpired, unrevoked tokens one
// project may carry.
const MaxActivePerProject = 10

// Service handles share token lifecycle for project owners.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new share token service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create issues a new token for the project. The returned row includes the
// raw token value; listings never do.
func (s *Service) Create(ctx context.Context, projectID, ownerID, name, duration string) (*ShareToken, error) {
	now := s.now()

	expiresAt, err := token.ExpiryFor(duration, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDuration, duration)
	}

	active, err := s.repo.CountActive(ctx, projectID, now)
	if err != nil {
		return nil, fmt.Errorf("counting active tokens: %w", err)
	}
	if active >= MaxActivePerProject {
		return nil, ErrLimitReached
	}

	raw, err := token.NewShareToken()
	if err != nil {
		return nil, err
	}

	st := &ShareToken{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		OwnerID:   ownerID,
		Token:     raw,
		Name:      token.SanitizeName(name),
		Duration:  duration,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("creating share token: %w", err)
	}

	s.logger.Info("share token created", "project_id", projectID, "token_id", st.ID)
	return st, nil
}

// Validate resolves a raw token to its project. It returns nil on any
// failure: wrong prefix, unknown value, revoked, or expired.
func (s *Service) Validate(ctx context.Context, raw string) *ShareToken {
	if !token.HasSharePrefix(raw) {
		return nil
	}
	st, err := s.repo.GetActiveByToken(ctx, raw, s.now())
	if err != nil {
		return nil
	}
	return st
}

// List returns every token ever issued for a project, raw values omitted.
func (s *Service) List(ctx context.Context, projectID string) ([]ShareToken, error) {
	tokens, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing share tokens: %w", err)
	}
	for i := range tokens {
		tokens[i].Token = ""
	}
	return tokens, nil
}

// Revoke marks a token dead. Validation fails from this point even before
// the token's natural expiry.
func (s *Service) Revoke(ctx context.Context, id, ownerID string) error {
	if err := s.repo.Revoke(ctx, id, ownerID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("revoking share token: %w", err)
	}
	s.logger.Info("share token revoked", "token_id", id)
	return nil
}
