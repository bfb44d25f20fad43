package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/repository"
)

// DeployRepository implements project.DeployRepository for SQLite.
type DeployRepository struct {
	db *DB
}

// NewDeployRepository creates a new DeployRepository.
func NewDeployRepository(db *DB) *DeployRepository {
	return &DeployRepository{db: db}
}

// CreateNext inserts the deploy with the next version number for its
// project. The version subquery runs inside the insert, so the store's
// per-statement atomicity is all the serialization this needs.
func (r *DeployRepository) CreateNext(ctx context.Context, d *project.Deploy) error {
	query := `
		INSERT INTO deploys (id, project_id, version, file_count, total_bytes, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM deploys WHERE project_id = ?), ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.ProjectID,
		d.ProjectID,
		d.FileCount,
		d.TotalBytes,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deploy: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT version FROM deploys WHERE id = ?`, d.ID).Scan(&d.Version)
	if err != nil {
		return fmt.Errorf("failed to read deploy version: %w", err)
	}
	return nil
}

// Get retrieves a deploy by ID.
func (r *DeployRepository) Get(ctx context.Context, id string) (*project.Deploy, error) {
	query := `SELECT id, project_id, version, file_count, total_bytes, created_at FROM deploys WHERE id = ?`
	var d project.Deploy
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.ProjectID, &d.Version, &d.FileCount, &d.TotalBytes, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deploy: %w", err)
	}
	return &d, nil
}

// ListByProject returns a project's deploys, newest first.
func (r *DeployRepository) ListByProject(ctx context.Context, projectID string) ([]project.Deploy, error) {
	query := `
		SELECT id, project_id, version, file_count, total_bytes, created_at
		FROM deploys
		WHERE project_id = ?
		ORDER BY version DESC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deploys: %w", err)
	}
	defer rows.Close()

	var deploys []project.Deploy
	for rows.Next() {
		var d project.Deploy
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Version, &d.FileCount, &d.TotalBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deploy: %w", err)
		}
		deploys = append(deploys, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deploy rows: %w", err)
	}
	return deploys, nil
}
