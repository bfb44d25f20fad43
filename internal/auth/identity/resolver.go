package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// ErrStop aborts the chain: the request is unauthenticated and no further
// method may be tried. Methods wrap it when their failure must not degrade
// to a weaker mechanism.
var ErrStop = errors.New("authentication stopped")

// Method is one authentication mechanism. Resolve returns (identity, nil)
// on success and (nil, nil) when the method does not apply to the request.
// Any other error counts as "try the next method" unless it wraps ErrStop.
type Method interface {
	Name() string
	Resolve(ctx context.Context, r *http.Request) (*Identity, error)
}

// Resolver runs methods strictly in order and stops at the first identity.
type Resolver struct {
	methods []Method
	logger  *slog.Logger
}

// NewResolver creates a resolver over an ordered method chain.
func NewResolver(logger *slog.Logger, methods ...Method) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{methods: methods, logger: logger}
}

// Resolve maps the request to zero-or-one identity. First success wins;
// a method returning ErrStop ends resolution as unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) *Identity {
	for _, m := range r.methods {
		id, err := m.Resolve(ctx, req)
		if err != nil {
			if errors.Is(err, ErrStop) {
				r.logger.Debug("auth chain stopped", "method", m.Name())
				return nil
			}
			r.logger.Debug("auth method failed", "method", m.Name(), "error", err)
			continue
		}
		if id != nil {
			return id
		}
	}
	return nil
}

type projectScopeKey struct{}

// WithProjectScope marks the request as content-serving for a specific
// project, enabling the capability and share token methods.
func WithProjectScope(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectScopeKey{}, projectID)
}

// ProjectScopeFromContext returns the scoped project ID, if any.
func ProjectScopeFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(projectScopeKey{}).(string)
	return id, ok
}
