package transport

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/publish"
)

type projectResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

type deployResponse struct {
	ID         string    `json:"id"`
	Version    int64     `json:"version"`
	FileCount  int       `json:"file_count"`
	TotalBytes int64     `json:"total_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

func toProjectResponse(p *project.Project) projectResponse {
	return projectResponse{
		ID:         p.ID,
		Name:       p.Name,
		Visibility: p.Visibility,
		CreatedAt:  p.CreatedAt,
	}
}

func toDeployResponse(d *project.Deploy) deployResponse {
	return deployResponse{
		ID:         d.ID,
		Version:    d.Version,
		FileCount:  d.FileCount,
		TotalBytes: d.TotalBytes,
		CreatedAt:  d.CreatedAt,
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	summaries, err := s.cfg.Projects.List(r.Context(), id.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if summaries == nil {
		summaries = []project.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": summaries})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := s.cfg.Publisher.DeleteProject(r.Context(), id.UserID, id.Email, name); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDeploys(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	deploys, err := s.cfg.Projects.Deploys(r.Context(), id.UserID, name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]deployResponse, 0, len(deploys))
	for i := range deploys {
		out = append(out, toDeployResponse(&deploys[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deploys": out})
}

// handlePublish accepts a zip body and runs the publish protocol.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	ct := r.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "application/zip" && ct != "application/octet-stream" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "body must be application/zip")
		return
	}

	// One byte over the limit distinguishes "too large" from "at the limit".
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxArchiveBytes+1))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, publish.CodeArchiveTooLarge, "archive too large")
		return
	}

	res, err := s.cfg.Publisher.Publish(r.Context(), publish.Request{
		OwnerID:    id.UserID,
		OwnerEmail: id.Email,
		Name:       chi.URLParam(r, "name"),
		ProjectID:  r.URL.Query().Get("project_id"),
		Visibility: r.URL.Query().Get("visibility"),
		Archive:    body,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	urls := make([]string, 0, len(res.Aliases))
	for _, alias := range res.Aliases {
		urls = append(urls, "/"+alias+"/"+res.Project.Name+"/")
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"project": toProjectResponse(res.Project),
		"deploy":  toDeployResponse(res.Deploy),
		"urls":    urls,
	})
}
