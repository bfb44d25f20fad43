package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/perchhq/perch/internal/domain/visibility"
	"github.com/perchhq/perch/internal/repository"
)

// Service handles project management operations. Publishing is owned by the
// publish coordinator; this service covers everything metadata-only.
type Service struct {
	repo    Repository
	deploys DeployRepository
	logger  *slog.Logger
}

// NewService creates a new project service.
func NewService(repo Repository, deploys DeployRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, deploys: deploys, logger: logger}
}

// Get fetches a project by owner and name.
func (s *Service) Get(ctx context.Context, ownerID, name string) (*Project, error) {
	proj, err := s.repo.GetByOwnerAndName(ctx, ownerID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

// GetByID fetches a project by ID.
func (s *Service) GetByID(ctx context.Context, id string) (*Project, error) {
	proj, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

// List returns project summaries for an owner.
func (s *Service) List(ctx context.Context, ownerID string) ([]Summary, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Deploys returns the immutable deploy history for an owner's project.
func (s *Service) Deploys(ctx context.Context, ownerID, name string) ([]Deploy, error) {
	proj, err := s.Get(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	return s.deploys.ListByProject(ctx, proj.ID)
}

// Rename changes a project's name after checking owner-scoped uniqueness.
func (s *Service) Rename(ctx context.Context, ownerID, name, newName string) (*Project, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}
	proj, err := s.Get(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if newName == proj.Name {
		return proj, nil
	}
	if _, err := s.repo.GetByOwnerAndName(ctx, ownerID, newName); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking name: %w", err)
	}
	if err := s.repo.Rename(ctx, proj.ID, newName); err != nil {
		return nil, fmt.Errorf("renaming project: %w", err)
	}
	proj.Name = newName
	s.logger.Info("project renamed", "project_id", proj.ID, "name", newName)
	return proj, nil
}

// SetVisibility updates a project's visibility. The raw value must parse and
// must not exceed the server ceiling.
func (s *Service) SetVisibility(ctx context.Context, ownerID, name, raw string, ceiling visibility.Group) (*Project, error) {
	group, err := visibility.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !visibility.Contains(ceiling, group) {
		return nil, ErrVisibilityExceedsCeiling
	}
	proj, err := s.Get(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetVisibility(ctx, proj.ID, group.String()); err != nil {
		return nil, fmt.Errorf("updating visibility: %w", err)
	}
	proj.Visibility = group.String()
	return proj, nil
}

// ValidateName rejects names that cannot appear in a URL path segment.
func ValidateName(name string) error {
	if name == "" || len(name) > 64 {
		return ErrInvalidName
	}
	for _, r := range name {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return ErrInvalidName
		}
	}
	return nil
}
