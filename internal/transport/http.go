// Package transport is the HTTP surface: the content host, the capability
// issuance endpoint, and the management API.
package transport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perchhq/perch/internal/auth/identity"
	"github.com/perchhq/perch/internal/content"
	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/publish"
	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/domain/user"
	"github.com/perchhq/perch/internal/domain/visibility"
	"github.com/perchhq/perch/internal/edge"
)

// Config carries everything the HTTP surface depends on.
type Config struct {
	Resolver    *identity.Resolver
	Users       user.Repository
	Projects    *project.Service
	ShareTokens *sharetoken.Service
	Publisher   *publish.Coordinator
	Locator     *content.Locator
	Cache       edge.Cache

	Secret    []byte
	Ceiling   visibility.Group
	AllowList visibility.Group
	// SingleDomain enables bare local-part owner URLs when every identity
	// lives under one domain.
	SingleDomain string
	// ContentHost validates return URLs on the issuance endpoint.
	ContentHost     string
	SharingEnabled  bool
	MaxArchiveBytes int64

	Logger *slog.Logger
}

// Server holds the handlers behind the router.
type Server struct {
	cfg    Config
	logger *slog.Logger
}

// NewServer creates the router with all routes and middleware attached.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{cfg: cfg, logger: logger}

	r := chi.NewRouter()

	r.Get("/health", srv.handleHealth)
	r.Get("/auth/content-access", srv.handleContentAccess)

	r.Route("/api", func(r chi.Router) {
		r.Use(srv.requireUser)
		r.Get("/projects", srv.handleListProjects)
		r.Route("/projects/{name}", func(r chi.Router) {
			r.Delete("/", srv.handleDeleteProject)
			r.Get("/deploys", srv.handleListDeploys)
			r.Post("/deploy", srv.handlePublish)
			r.Route("/share-tokens", func(r chi.Router) {
				r.Use(srv.requireSharing)
				r.Post("/", srv.handleCreateShareToken)
				r.Get("/", srv.handleListShareTokens)
				r.Delete("/{id}", srv.handleRevokeShareToken)
			})
		})
	})

	r.Get("/{owner}/{project}", srv.redirectToDirectory)
	r.Get("/{owner}/{project}/*", srv.handleContent)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
