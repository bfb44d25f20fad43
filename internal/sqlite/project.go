package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/repository"
)

// ProjectRepository implements project.Repository for SQLite.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, owner_id, name, visibility, COALESCE(live_deploy_id, ''), created_at, updated_at`

// Create creates a new project.
func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, name, visibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		proj.ID,
		proj.OwnerID,
		proj.Name,
		proj.Visibility,
		proj.CreatedAt,
		proj.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return project.ErrNameTaken
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return r.scanProject(r.db.QueryRowContext(ctx, query, id))
}

// GetByOwnerAndName retrieves a project by its owner-scoped name.
func (r *ProjectRepository) GetByOwnerAndName(ctx context.Context, ownerID, name string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? AND name = ?`
	return r.scanProject(r.db.QueryRowContext(ctx, query, ownerID, name))
}

func (r *ProjectRepository) scanProject(row *sql.Row) (*project.Project, error) {
	var proj project.Project
	err := row.Scan(
		&proj.ID,
		&proj.OwnerID,
		&proj.Name,
		&proj.Visibility,
		&proj.LiveDeployID,
		&proj.CreatedAt,
		&proj.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &proj, nil
}

// ListByOwner returns project summaries for an owner.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]project.Summary, error) {
	query := `
		SELECT
			p.id,
			p.name,
			p.visibility,
			COALESCE(live.version, 0) as live_version,
			COUNT(d.id) as deploy_count,
			p.created_at
		FROM projects p
		LEFT JOIN deploys live ON live.id = p.live_deploy_id
		LEFT JOIN deploys d ON d.project_id = p.id
		WHERE p.owner_id = ?
		GROUP BY p.id, p.name, p.visibility, live.version, p.created_at
		ORDER BY p.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var summaries []project.Summary
	for rows.Next() {
		var s project.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Visibility, &s.LiveVersion, &s.DeployCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return summaries, nil
}

// Rename updates a project's name.
func (r *ProjectRepository) Rename(ctx context.Context, id, name string) error {
	query := `UPDATE projects SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return project.ErrNameTaken
		}
		return fmt.Errorf("failed to rename project: %w", err)
	}
	return requireRow(result)
}

// SetVisibility updates a project's visibility string.
func (r *ProjectRepository) SetVisibility(ctx context.Context, id, visibility string) error {
	query := `UPDATE projects SET visibility = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, visibility, id)
	if err != nil {
		return fmt.Errorf("failed to set visibility: %w", err)
	}
	return requireRow(result)
}

// SetLiveDeploy flips the live pointer to the given deploy.
func (r *ProjectRepository) SetLiveDeploy(ctx context.Context, id, deployID string) error {
	query := `UPDATE projects SET live_deploy_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, deployID, id)
	if err != nil {
		return fmt.Errorf("failed to set live deploy: %w", err)
	}
	return requireRow(result)
}

// Delete removes the project; deploys and share tokens cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
