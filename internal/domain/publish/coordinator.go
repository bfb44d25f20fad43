// Package publish implements the deploy-publication protocol: archive
// validation, metadata insert, batched object upload, and the final live
// pointer flip. The ordering insert -> upload -> flip is what keeps the
// metadata store and object store from ever being observably inconsistent.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/visibility"
	"github.com/perchhq/perch/internal/edge"
	"github.com/perchhq/perch/internal/objectstore"
	"github.com/perchhq/perch/internal/repository"
)

// uploadConcurrency caps in-flight object puts during a publish. This is a
// backpressure choice, not a correctness one.
const uploadConcurrency = 10

// Coordinator owns the publish state machine and project deletion cleanup.
type Coordinator struct {
	projects     project.Repository
	deploys      project.DeployRepository
	store        objectstore.Store
	invalidator  *edge.Invalidator
	ceiling      visibility.Group
	singleDomain string
	limits       Limits
	logger       *slog.Logger
	now          func() time.Time
}

// Config wires a Coordinator.
type Config struct {
	Projects     project.Repository
	Deploys      project.DeployRepository
	Store        objectstore.Store
	Invalidator  *edge.Invalidator
	Ceiling      visibility.Group
	SingleDomain string
	Limits       Limits
	Logger       *slog.Logger
}

// NewCoordinator creates a publish coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	limits := cfg.Limits
	if limits.MaxArchiveBytes == 0 {
		limits = DefaultLimits
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		projects:     cfg.Projects,
		deploys:      cfg.Deploys,
		store:        cfg.Store,
		invalidator:  cfg.Invalidator,
		ceiling:      cfg.Ceiling,
		singleDomain: cfg.SingleDomain,
		limits:       limits,
		logger:       logger,
		now:          time.Now,
	}
}

// Request is one publish attempt.
type Request struct {
	OwnerID    string
	OwnerEmail string
	Name       string
	// ProjectID targets an existing project for rename-during-publish.
	ProjectID  string
	Visibility string
	Archive    []byte
}

// Result is returned to the publisher on success.
type Result struct {
	Project *project.Project
	Deploy  *project.Deploy
	// Aliases are the owner identifiers the project is now reachable under.
	Aliases []string
}

// Publish runs the full protocol. A failure during upload leaves the
// previous live deploy serving; the partially uploaded deploy row is never
// referenced and needs no compensating delete for correctness.
func (c *Coordinator) Publish(ctx context.Context, req Request) (*Result, error) {
	if err := project.ValidateName(req.Name); err != nil {
		return nil, err
	}

	vis, err := visibility.Parse(req.Visibility)
	if err != nil {
		return nil, err
	}
	if !visibility.Contains(c.ceiling, vis) {
		return nil, project.ErrVisibilityExceedsCeiling
	}

	archive, err := ParseArchive(req.Archive, c.limits)
	if err != nil {
		return nil, err
	}

	proj, err := c.resolveProject(ctx, req, vis)
	if err != nil {
		return nil, err
	}

	deploy := &project.Deploy{
		ID:         uuid.NewString(),
		ProjectID:  proj.ID,
		FileCount:  len(archive.Files),
		TotalBytes: archive.TotalBytes,
		CreatedAt:  c.now(),
	}
	if err := c.deploys.CreateNext(ctx, deploy); err != nil {
		return nil, fmt.Errorf("inserting deploy: %w", err)
	}

	if err := c.uploadFiles(ctx, deploy.ID, archive.Files); err != nil {
		c.logger.Error("publish upload failed, live pointer untouched",
			"project_id", proj.ID, "deploy_id", deploy.ID, "error", err)
		return nil, fmt.Errorf("uploading deploy files: %w", err)
	}

	if err := c.projects.SetLiveDeploy(ctx, proj.ID, deploy.ID); err != nil {
		return nil, fmt.Errorf("flipping live deploy: %w", err)
	}
	proj.LiveDeployID = deploy.ID

	c.logger.Info("deploy published",
		"project_id", proj.ID, "deploy_id", deploy.ID,
		"version", deploy.Version, "files", deploy.FileCount, "bytes", deploy.TotalBytes)

	// Fire-and-forget relative to the publish response.
	go c.invalidator.PurgeProject(context.WithoutCancel(ctx), req.OwnerID, req.OwnerEmail, c.singleDomain, proj.Name)

	return &Result{
		Project: proj,
		Deploy:  deploy,
		Aliases: edge.Aliases(req.OwnerID, req.OwnerEmail, c.singleDomain),
	}, nil
}

// resolveProject finds or creates the target project, applying a
// rename-during-publish when a project ID is given with a different name.
func (c *Coordinator) resolveProject(ctx context.Context, req Request, vis visibility.Group) (*project.Project, error) {
	if req.ProjectID != "" {
		proj, err := c.projects.GetByID(ctx, req.ProjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, project.ErrNotFound
			}
			return nil, fmt.Errorf("getting project: %w", err)
		}
		if proj.OwnerID != req.OwnerID {
			return nil, project.ErrNotFound
		}
		if proj.Name != req.Name {
			if _, err := c.projects.GetByOwnerAndName(ctx, req.OwnerID, req.Name); err == nil {
				return nil, project.ErrNameTaken
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("checking name: %w", err)
			}
			if err := c.projects.Rename(ctx, proj.ID, req.Name); err != nil {
				return nil, fmt.Errorf("renaming project: %w", err)
			}
			proj.Name = req.Name
		}
		return c.applyVisibility(ctx, proj, req.Visibility, vis)
	}

	proj, err := c.projects.GetByOwnerAndName(ctx, req.OwnerID, req.Name)
	if errors.Is(err, repository.ErrNotFound) {
		proj = &project.Project{
			ID:         uuid.NewString(),
			OwnerID:    req.OwnerID,
			Name:       req.Name,
			Visibility: vis.String(),
			CreatedAt:  c.now(),
			UpdatedAt:  c.now(),
		}
		if err := c.projects.Create(ctx, proj); err != nil {
			return nil, fmt.Errorf("creating project: %w", err)
		}
		return proj, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return c.applyVisibility(ctx, proj, req.Visibility, vis)
}

// applyVisibility updates an existing project's visibility only when the
// request carried an explicit value.
func (c *Coordinator) applyVisibility(ctx context.Context, proj *project.Project, raw string, vis visibility.Group) (*project.Project, error) {
	if raw == "" || proj.Visibility == vis.String() {
		return proj, nil
	}
	if err := c.projects.SetVisibility(ctx, proj.ID, vis.String()); err != nil {
		return nil, fmt.Errorf("updating visibility: %w", err)
	}
	proj.Visibility = vis.String()
	return proj, nil
}

func (c *Coordinator) uploadFiles(ctx context.Context, deployID string, files []ArchiveFile) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, f := range files {
		g.Go(func() error {
			key := deployID + "/" + f.Path
			if err := c.store.Put(gctx, key, bytes.NewReader(f.Data), int64(len(f.Data))); err != nil {
				return fmt.Errorf("putting %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// DeleteProject removes a project's rows, best-effort deletes its objects,
// and purges every cached alias. Object deletion failures are logged only:
// metadata is authoritative and orphaned objects are storage hygiene, not
// correctness.
func (c *Coordinator) DeleteProject(ctx context.Context, ownerID, ownerEmail, name string) error {
	proj, err := c.projects.GetByOwnerAndName(ctx, ownerID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return project.ErrNotFound
		}
		return fmt.Errorf("getting project: %w", err)
	}

	deploys, err := c.deploys.ListByProject(ctx, proj.ID)
	if err != nil {
		return fmt.Errorf("listing deploys: %w", err)
	}

	if err := c.projects.Delete(ctx, proj.ID); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	go func() {
		cleanupCtx := context.WithoutCancel(ctx)
		for _, d := range deploys {
			keys, err := c.store.ListPrefix(cleanupCtx, d.ID+"/")
			if err != nil {
				c.logger.Warn("listing deploy objects failed", "deploy_id", d.ID, "error", err)
				continue
			}
			for _, key := range keys {
				if err := c.store.Delete(cleanupCtx, key); err != nil {
					c.logger.Warn("deleting object failed", "key", key, "error", err)
				}
			}
		}
		c.invalidator.PurgeProject(cleanupCtx, ownerID, ownerEmail, c.singleDomain, proj.Name)
	}()

	c.logger.Info("project deleted", "project_id", proj.ID, "name", proj.Name)
	return nil
}
