// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/domain/user"
)

// ProjectRepository is a mock for project.Repository.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	args := m.Called(ctx, proj)
	return args.Error(0)
}

func (m *ProjectRepository) GetByID(ctx context.Context, id string) (*project.Project, error) {
	args := m.Called(ctx, id)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) GetByOwnerAndName(ctx context.Context, ownerID, name string) (*project.Project, error) {
	args := m.Called(ctx, ownerID, name)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]project.Summary, error) {
	args := m.Called(ctx, ownerID)
	if list, ok := args.Get(0).([]project.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Rename(ctx context.Context, id, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *ProjectRepository) SetVisibility(ctx context.Context, id, visibility string) error {
	args := m.Called(ctx, id, visibility)
	return args.Error(0)
}

func (m *ProjectRepository) SetLiveDeploy(ctx context.Context, id, deployID string) error {
	args := m.Called(ctx, id, deployID)
	return args.Error(0)
}

func (m *ProjectRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DeployRepository is a mock for project.DeployRepository.
type DeployRepository struct {
	mock.Mock
}

func (m *DeployRepository) CreateNext(ctx context.Context, d *project.Deploy) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *DeployRepository) Get(ctx context.Context, id string) (*project.Deploy, error) {
	args := m.Called(ctx, id)
	if d, ok := args.Get(0).(*project.Deploy); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DeployRepository) ListByProject(ctx context.Context, projectID string) ([]project.Deploy, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]project.Deploy); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// UserRepository is a mock for user.Repository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// SessionRepository is a mock for user.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, s *user.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *SessionRepository) GetActive(ctx context.Context, token string, now time.Time) (*user.User, error) {
	args := m.Called(ctx, token, now)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// APIKeyRepository is a mock for user.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

func (m *APIKeyRepository) Create(ctx context.Context, keyHash, userID, description string) error {
	args := m.Called(ctx, keyHash, userID, description)
	return args.Error(0)
}

func (m *APIKeyRepository) GetUser(ctx context.Context, keyHash string) (*user.User, error) {
	args := m.Called(ctx, keyHash)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// ShareTokenRepository is a mock for sharetoken.Repository.
type ShareTokenRepository struct {
	mock.Mock
}

func (m *ShareTokenRepository) Create(ctx context.Context, t *sharetoken.ShareToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *ShareTokenRepository) GetActiveByToken(ctx context.Context, token string, now time.Time) (*sharetoken.ShareToken, error) {
	args := m.Called(ctx, token, now)
	if st, ok := args.Get(0).(*sharetoken.ShareToken); ok {
		return st, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ShareTokenRepository) ListByProject(ctx context.Context, projectID string) ([]sharetoken.ShareToken, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]sharetoken.ShareToken); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ShareTokenRepository) CountActive(ctx context.Context, projectID string, now time.Time) (int, error) {
	args := m.Called(ctx, projectID, now)
	return args.Int(0), args.Error(1)
}

func (m *ShareTokenRepository) Revoke(ctx context.Context, id, ownerID string, now time.Time) error {
	args := m.Called(ctx, id, ownerID, now)
	return args.Error(0)
}
