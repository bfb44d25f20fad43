// Package testserver boots a full server over an in-memory database and
// object store for end-to-end HTTP tests.
package testserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/perchhq/perch/internal/auth/identity"
	"github.com/perchhq/perch/internal/content"
	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/publish"
	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/domain/user"
	"github.com/perchhq/perch/internal/domain/visibility"
	"github.com/perchhq/perch/internal/edge"
	"github.com/perchhq/perch/internal/objectstore"
	"github.com/perchhq/perch/internal/sqlite"
	"github.com/perchhq/perch/internal/transport"
)

// Secret signs capability tokens in tests.
var Secret = []byte("testserver-secret")

// Options tune the server under test.
type Options struct {
	Ceiling      string
	AllowList    string
	SingleDomain string
	Sharing      bool
}

// TestServer is a fully wired server plus direct handles on its state.
type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	Store  *objectstore.MemoryStore
	Cache  *edge.MemoryCache

	Users    user.Repository
	Sessions user.SessionRepository
	Keys     user.APIKeyRepository
	Projects *project.Service
}

// New boots a server. Zero-value options mean a public ceiling, everyone
// allowed, sharing on.
func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	if opts.Ceiling == "" {
		opts.Ceiling = "public"
	}
	if opts.AllowList == "" {
		opts.AllowList = "public"
	}

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	ceiling, err := visibility.Parse(opts.Ceiling)
	require.NoError(t, err)
	allowList, err := visibility.Parse(opts.AllowList)
	require.NoError(t, err)

	users := sqlite.NewUserRepository(db)
	sessions := sqlite.NewSessionRepository(db)
	keys := sqlite.NewAPIKeyRepository(db)
	projects := sqlite.NewProjectRepository(db)
	deploys := sqlite.NewDeployRepository(db)
	shares := sqlite.NewShareTokenRepository(db)

	store := objectstore.NewMemoryStore()
	cache := edge.NewMemoryCache(time.Minute)

	projectSvc := project.NewService(projects, deploys, nil)
	shareSvc := sharetoken.NewService(shares, nil)
	coordinator := publish.NewCoordinator(publish.Config{
		Projects:     projects,
		Deploys:      deploys,
		Store:        store,
		Invalidator:  edge.NewInvalidator(cache, nil),
		Ceiling:      ceiling,
		SingleDomain: opts.SingleDomain,
		Limits:       publish.DefaultLimits,
	})

	resolver := identity.NewResolver(nil,
		&identity.BearerSession{Sessions: sessions},
		&identity.APIKey{Keys: keys},
		&identity.ContentToken{Secret: Secret, Shares: shareAdapter{shareSvc}},
		&identity.CookieSession{Sessions: sessions},
	)

	server := httptest.NewServer(transport.NewServer(transport.Config{
		Resolver:        resolver,
		Users:           users,
		Projects:        projectSvc,
		ShareTokens:     shareSvc,
		Publisher:       coordinator,
		Locator:         content.NewLocator(store),
		Cache:           cache,
		Secret:          Secret,
		Ceiling:         ceiling,
		AllowList:       allowList,
		SingleDomain:    opts.SingleDomain,
		SharingEnabled:  opts.Sharing,
		MaxArchiveBytes: publish.DefaultLimits.MaxArchiveBytes,
	}))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Store:    store,
		Cache:    cache,
		Users:    users,
		Sessions: sessions,
		Keys:     keys,
		Projects: projectSvc,
	}

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

// AddUser inserts a user row.
func (ts *TestServer) AddUser(t *testing.T, email string) *user.User {
	t.Helper()
	u := &user.User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	require.NoError(t, ts.Users.Create(context.Background(), u))
	return u
}

// AddSession creates an hour-long session and returns its token.
func (ts *TestServer) AddSession(t *testing.T, userID string) string {
	t.Helper()
	tok := "sess_" + uuid.NewString()
	require.NoError(t, ts.Sessions.Create(context.Background(), &user.Session{
		Token:     tok,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}))
	return tok
}

// AddAPIKey registers an API key for the user and returns the raw key.
func (ts *TestServer) AddAPIKey(t *testing.T, userID string) string {
	t.Helper()
	raw := "key_" + uuid.NewString()
	require.NoError(t, ts.Keys.Create(context.Background(), identity.HashAPIKey(raw), userID, "test key"))
	return raw
}

// shareAdapter exposes the share token service to the identity chain.
type shareAdapter struct {
	svc *sharetoken.Service
}

func (a shareAdapter) ValidateShareToken(ctx context.Context, raw string) (string, bool) {
	st := a.svc.Validate(ctx, raw)
	if st == nil {
		return "", false
	}
	return st.ProjectID, true
}
