package transport

import (
	"context"
	"net/http"

	"github.com/perchhq/perch/internal/auth/identity"
)

type identityKey struct{}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*identity.Identity)
	return id, ok
}

// requireUser gates the management API: the request must resolve to a user
// identity whose email passes the server allow-list. The allow-list runs on
// every request, so revoking a user needs no session invalidation.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.cfg.Resolver.Resolve(r.Context(), r)
		if id == nil || id.UserID == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "authentication required")
			return
		}
		if !s.cfg.AllowList.Matches(id.Email) {
			writeError(w, http.StatusForbidden, codeForbidden, "not allowed")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSharing rejects share-token routes when the feature is off.
func (s *Server) requireSharing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.SharingEnabled {
			writeError(w, http.StatusForbidden, codeSharingDisabled, "sharing is disabled on this server")
			return
		}
		next.ServeHTTP(w, r)
	})
}
