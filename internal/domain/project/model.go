package project

import "time"

// Project is a hosted site owned by one user. Visibility holds the
// canonical string form of the group grammar; LiveDeployID points at the
// deploy currently being served, or is empty before the first publish.
type Project struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Visibility   string    `json:"visibility"`
	LiveDeployID string    `json:"live_deploy_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Deploy is one immutable published snapshot. Version increases per project
// starting at 1; rows are never updated after insert.
type Deploy struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Version    int64     `json:"version"`
	FileCount  int       `json:"file_count"`
	TotalBytes int64     `json:"total_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary is a lightweight representation for listing.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Visibility  string    `json:"visibility"`
	LiveVersion int64     `json:"live_version"`
	DeployCount int       `json:"deploy_count"`
	CreatedAt   time.Time `json:"created_at"`
}
