package transport

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/perchhq/perch/internal/auth/access"
	"github.com/perchhq/perch/internal/auth/identity"
	"github.com/perchhq/perch/internal/auth/token"
	"github.com/perchhq/perch/internal/content"
	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/edge"
	"github.com/perchhq/perch/internal/repository"
)

// maxCachedBodyBytes bounds what a single edge cache entry may hold.
const maxCachedBodyBytes = 1 << 20

// shareCookieMaxAge caps how long a persisted share-token cookie lives; the
// token itself may outlast it and will simply be re-persisted from the query.
const shareCookieMaxAge = 24 * 60 * 60

// redirectToDirectory 301s bare /{owner}/{project} to the trailing-slash
// form so relative asset links resolve.
func (s *Server) redirectToDirectory(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path + "/"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

// handleContent serves one file from a project's live deploy.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	ownerParam := chi.URLParam(r, "owner")
	projectName := chi.URLParam(r, "project")

	cleaned, err := content.CleanPath(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	// The project lookup happens before authentication so the capability
	// method can be scoped, but its outcome must not leak: a nonexistent
	// project follows the exact redirect path of a private one, keyed by a
	// synthetic ID.
	var proj *project.Project
	owner, err := content.ResolveOwner(r.Context(), s.cfg.Users, ownerParam, s.cfg.SingleDomain)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}
	if owner != nil {
		proj, err = s.cfg.Projects.Get(r.Context(), owner.ID, projectName)
		if err != nil && !errors.Is(err, project.ErrNotFound) {
			s.writeDomainError(w, err)
			return
		}
	}
	projectID := access.SyntheticProjectID(ownerParam, projectName)
	if proj != nil {
		projectID = proj.ID
	}

	ctx := identity.WithProjectScope(r.Context(), projectID)
	id := s.cfg.Resolver.Resolve(ctx, r.WithContext(ctx))

	if !access.CanAccess(id, proj, s.cfg.Ceiling) {
		s.redirectToIssuance(w, r, projectID)
		return
	}

	cacheKey := r.URL.Path
	eligible := s.cfg.Cache != nil && access.CacheEligible(id, proj, s.cfg.Ceiling)
	if eligible {
		if entry, ok := s.cfg.Cache.Get(cacheKey); ok {
			content.SetSecurityHeaders(w.Header())
			w.Header().Set("Content-Type", entry.ContentType)
			w.Header().Set("Cache-Control", content.CacheControlFor(cleaned))
			_, _ = w.Write(entry.Body)
			return
		}
	}

	if proj.LiveDeployID == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}
	file, err := s.cfg.Locator.FindFile(r.Context(), proj.LiveDeployID, cleaned)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	defer file.Object.Body.Close()

	s.persistTokenCookies(w, r, id)

	content.SetSecurityHeaders(w.Header())
	contentType := content.ContentTypeFor(file.Path)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", content.CacheControlFor(file.Path))

	if eligible && file.Object.Size <= maxCachedBodyBytes {
		body, err := io.ReadAll(file.Object.Body)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.cfg.Cache.Set(cacheKey, &edge.Entry{Body: body, ContentType: contentType})
		_, _ = w.Write(body)
		return
	}
	_, _ = io.Copy(w, file.Object.Body)
}

// redirectToIssuance 302s to the capability issuance endpoint. Shape and
// status are identical for private and nonexistent projects.
func (s *Server) redirectToIssuance(w http.ResponseWriter, r *http.Request, projectID string) {
	ret := url.URL{
		Scheme: "http",
		Host:   r.Host,
		Path:   r.URL.Path,
	}
	if r.TLS != nil {
		ret.Scheme = "https"
	}
	target := url.URL{
		Path: "/auth/content-access",
		RawQuery: url.Values{
			"project_id": {projectID},
			"return_url": {ret.String()},
		}.Encode(),
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// persistTokenCookies writes a query-parameter credential into a
// project-path-scoped cookie so later requests need no parameter.
func (s *Server) persistTokenCookies(w http.ResponseWriter, r *http.Request, id *identity.Identity) {
	if id == nil {
		return
	}
	scope := "/" + chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "project") + "/"

	if raw := r.URL.Query().Get(identity.CapabilityParam); raw != "" && id.UserID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     identity.CapabilityCookie,
			Value:    raw,
			Path:     scope,
			MaxAge:   int(token.CapabilityTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if raw := r.URL.Query().Get(identity.ShareParam); raw != "" && id.ProjectGrant != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     identity.ShareCookie,
			Value:    raw,
			Path:     scope,
			MaxAge:   shareCookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// handleContentAccess issues a capability token and bounces the browser back
// to the content URL it came from.
func (s *Server) handleContentAccess(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	rawReturn := r.URL.Query().Get("return_url")
	if projectID == "" || rawReturn == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "project_id and return_url are required")
		return
	}
	ret, err := url.Parse(rawReturn)
	if err != nil || ret.Host == "" || !s.returnHostAllowed(ret.Host, r.Host) {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid return_url")
		return
	}

	id := s.cfg.Resolver.Resolve(r.Context(), r)
	if id == nil || id.UserID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "authentication required")
		return
	}

	// Issuance is where "not found" is allowed to surface. A synthetic ID
	// never resolves, and a project the caller may not see answers the same
	// way, so neither outcome identifies the other.
	proj, err := s.cfg.Projects.GetByID(r.Context(), projectID)
	if err != nil && !errors.Is(err, project.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}
	if proj == nil || !access.CanAccess(id, proj, s.cfg.Ceiling) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	raw, err := token.IssueCapability(id.UserID, id.Email, projectID, s.cfg.Secret, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	q := ret.Query()
	q.Set(identity.CapabilityParam, raw)
	ret.RawQuery = q.Encode()
	http.Redirect(w, r, ret.String(), http.StatusFound)
}

// returnHostAllowed pins return URLs to the content origin. Anything else is
// an open redirect.
func (s *Server) returnHostAllowed(host, requestHost string) bool {
	if s.cfg.ContentHost != "" {
		return host == s.cfg.ContentHost
	}
	return host == requestHost
}
