package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/perchhq/perch/internal/domain/sharetoken"
)

type shareTokenResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Duration  string     `json:"duration"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toShareTokenResponse(st *sharetoken.ShareToken) shareTokenResponse {
	return shareTokenResponse{
		ID:        st.ID,
		Name:      st.Name,
		Duration:  st.Duration,
		Token:     st.Token,
		ExpiresAt: st.ExpiresAt,
		RevokedAt: st.RevokedAt,
		CreatedAt: st.CreatedAt,
	}
}

// ownedProject fetches the named project scoped to the caller. Foreign
// projects are indistinguishable from missing ones.
func (s *Server) ownedProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, _ := IdentityFromContext(r.Context())
	proj, err := s.cfg.Projects.Get(r.Context(), id.UserID, chi.URLParam(r, "name"))
	if err != nil {
		s.writeDomainError(w, err)
		return "", false
	}
	return proj.ID, true
}

func (s *Server) handleCreateShareToken(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.ownedProject(w, r)
	if !ok {
		return
	}
	id, _ := IdentityFromContext(r.Context())

	var req struct {
		Name     string `json:"name"`
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}

	st, err := s.cfg.ShareTokens.Create(r.Context(), projectID, id.UserID, req.Name, req.Duration)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	// The raw token value appears exactly once, in this response.
	writeJSON(w, http.StatusCreated, toShareTokenResponse(st))
}

func (s *Server) handleListShareTokens(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.ownedProject(w, r)
	if !ok {
		return
	}

	tokens, err := s.cfg.ShareTokens.List(r.Context(), projectID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]shareTokenResponse, 0, len(tokens))
	for i := range tokens {
		out = append(out, toShareTokenResponse(&tokens[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"share_tokens": out})
}

func (s *Server) handleRevokeShareToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownedProject(w, r); !ok {
		return
	}
	id, _ := IdentityFromContext(r.Context())

	if err := s.cfg.ShareTokens.Revoke(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
