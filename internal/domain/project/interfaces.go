package project

import "context"

// Repository provides persistence for projects.
type Repository interface {
	Create(ctx context.Context, proj *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	GetByOwnerAndName(ctx context.Context, ownerID, name string) (*Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Summary, error)
	Rename(ctx context.Context, id, name string) error
	SetVisibility(ctx context.Context, id, visibility string) error
	SetLiveDeploy(ctx context.Context, id, deployID string) error
	Delete(ctx context.Context, id string) error
}

// DeployRepository provides persistence for immutable deploy rows.
type DeployRepository interface {
	// CreateNext inserts the deploy with the next version number for its
	// project and fills in d.Version.
	CreateNext(ctx context.Context, d *Deploy) error
	Get(ctx context.Context, id string) (*Deploy, error)
	ListByProject(ctx context.Context, projectID string) ([]Deploy, error)
}
