package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/perchhq/perch/internal/auth/identity"
	"github.com/perchhq/perch/internal/config"
	"github.com/perchhq/perch/internal/content"
	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/publish"
	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/edge"
	"github.com/perchhq/perch/internal/objectstore"
	"github.com/perchhq/perch/internal/sqlite"
	"github.com/perchhq/perch/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ceiling, err := cfg.Content.Ceiling()
	if err != nil {
		return err
	}
	allowList, err := cfg.Auth.AllowList()
	if err != nil {
		return err
	}
	singleDomain, _ := allowList.SingleDomain()

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("preparing database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	store, err := newObjectStore(cfg.Storage, logger)
	if err != nil {
		return err
	}

	users := sqlite.NewUserRepository(db)
	sessions := sqlite.NewSessionRepository(db)
	keys := sqlite.NewAPIKeyRepository(db)
	projects := sqlite.NewProjectRepository(db)
	deploys := sqlite.NewDeployRepository(db)
	shares := sqlite.NewShareTokenRepository(db)

	cache := edge.NewMemoryCache(cfg.Content.CacheTTL)
	projectSvc := project.NewService(projects, deploys, logger)
	shareSvc := sharetoken.NewService(shares, logger)
	coordinator := publish.NewCoordinator(publish.Config{
		Projects:     projects,
		Deploys:      deploys,
		Store:        store,
		Invalidator:  edge.NewInvalidator(cache, logger),
		Ceiling:      ceiling,
		SingleDomain: singleDomain,
		Limits:       cfg.Publish.Limits(),
		Logger:       logger,
	})

	secret := []byte(cfg.Auth.Secret)
	methods := []identity.Method{
		&identity.BearerSession{Sessions: sessions},
		&identity.APIKey{Keys: keys},
	}
	if cfg.Auth.EdgeProxyEnabled() {
		methods = append(methods, &identity.EdgeProxy{
			Keys:     identity.NewJWKSCache(cfg.Auth.EdgeProxyJWKSURL, time.Hour),
			Users:    users,
			Issuer:   cfg.Auth.EdgeProxyIssuer,
			Audience: cfg.Auth.EdgeProxyAudience,
			Logger:   logger,
		})
	}
	methods = append(methods,
		&identity.ContentToken{Secret: secret, Shares: shareValidator{shareSvc}},
		&identity.CookieSession{Sessions: sessions},
	)

	router := transport.NewServer(transport.Config{
		Resolver:        identity.NewResolver(logger, methods...),
		Users:           users,
		Projects:        projectSvc,
		ShareTokens:     shareSvc,
		Publisher:       coordinator,
		Locator:         content.NewLocator(store),
		Cache:           cache,
		Secret:          secret,
		Ceiling:         ceiling,
		AllowList:       allowList,
		SingleDomain:    singleDomain,
		ContentHost:     cfg.Content.Host,
		SharingEnabled:  cfg.Content.SharingEnabled,
		MaxArchiveBytes: cfg.Publish.MaxArchiveBytes,
		Logger:          logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
	return nil
}

// newObjectStore picks S3 when a bucket is configured, the in-process store
// otherwise. The memory store loses everything on restart; it exists for
// local development only.
func newObjectStore(cfg config.StorageConfig, logger *slog.Logger) (objectstore.Store, error) {
	if cfg.Bucket == "" {
		logger.Warn("no storage bucket configured, using in-memory object store")
		return objectstore.NewMemoryStore(), nil
	}
	store, err := objectstore.NewS3Store(context.Background(), objectstore.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}
	return store, nil
}

// shareValidator adapts the share token service to the identity chain.
type shareValidator struct {
	svc *sharetoken.Service
}

func (v shareValidator) ValidateShareToken(ctx context.Context, raw string) (string, bool) {
	st := v.svc.Validate(ctx, raw)
	if st == nil {
		return "", false
	}
	return st.ProjectID, true
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
