package integration_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/perchhq/perch/internal/auth/access"
	"github.com/perchhq/perch/internal/auth/identity"
	"github.com/perchhq/perch/internal/auth/token"
	"github.com/perchhq/perch/internal/content"
	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/publish"
	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/domain/user"
	"github.com/perchhq/perch/internal/domain/visibility"
	"github.com/perchhq/perch/internal/edge"
	"github.com/perchhq/perch/internal/objectstore"
	"github.com/perchhq/perch/internal/sqlite"
)

type testEnv struct {
	db      *sqlite.DB
	store   *objectstore.MemoryStore
	cache   *edge.MemoryCache
	ceiling visibility.Group

	users       *sqlite.UserRepository
	projects    *sqlite.ProjectRepository
	projectSvc  *project.Service
	shareSvc    *sharetoken.Service
	coordinator *publish.Coordinator
	locator     *content.Locator
}

func newTestEnv(t *testing.T, ceilingRaw, singleDomain string) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	ceiling, err := visibility.Parse(ceilingRaw)
	require.NoError(t, err)

	store := objectstore.NewMemoryStore()
	cache := edge.NewMemoryCache(time.Minute)
	projects := sqlite.NewProjectRepository(db)
	deploys := sqlite.NewDeployRepository(db)

	return &testEnv{
		db:         db,
		store:      store,
		cache:      cache,
		ceiling:    ceiling,
		users:      sqlite.NewUserRepository(db),
		projects:   projects,
		projectSvc: project.NewService(projects, deploys, nil),
		shareSvc:   sharetoken.NewService(sqlite.NewShareTokenRepository(db), nil),
		coordinator: publish.NewCoordinator(publish.Config{
			Projects:     projects,
			Deploys:      deploys,
			Store:        store,
			Invalidator:  edge.NewInvalidator(cache, nil),
			Ceiling:      ceiling,
			SingleDomain: singleDomain,
			Limits:       publish.DefaultLimits,
		}),
		locator: content.NewLocator(store),
	}
}

func (env *testEnv) addUser(t *testing.T, email string) *user.User {
	t.Helper()
	u := &user.User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	require.NoError(t, env.users.Create(context.Background(), u))
	return u
}

func (env *testEnv) publish(t *testing.T, owner *user.User, name, vis string, files map[string]string) *publish.Result {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for path, body := range files {
		w, err := zw.Create(path)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	res, err := env.coordinator.Publish(context.Background(), publish.Request{
		OwnerID:    owner.ID,
		OwnerEmail: owner.Email,
		Name:       name,
		Visibility: vis,
		Archive:    buf.Bytes(),
	})
	require.NoError(t, err)
	return res
}

// TestPublishServeLifecycle walks the full path a site takes: publish, owner
// resolution, file lookup, access decisions, republish, capability access,
// and deletion.
func TestPublishServeLifecycle(t *testing.T) {
	env := newTestEnv(t, "public", "acme.com")
	ctx := context.Background()

	owner := env.addUser(t, "owner@acme.com")
	stranger := env.addUser(t, "stranger@other.com")

	res := env.publish(t, owner, "docs", "@acme.com", map[string]string{
		"index.html": "<h1>v1</h1>",
		"guide.html": "guide",
	})

	// Every alias resolves back to the same owner.
	for _, alias := range []string{owner.ID, "owner@acme.com", "OWNER@ACME.COM", "owner"} {
		u, err := content.ResolveOwner(ctx, env.users, alias, "acme.com")
		require.NoError(t, err, "alias %s", alias)
		require.Equal(t, owner.ID, u.ID)
	}

	proj, err := env.projectSvc.Get(ctx, owner.ID, "docs")
	require.NoError(t, err)
	require.Equal(t, res.Deploy.ID, proj.LiveDeployID)

	// Access: owner yes, domain member yes, outsider no, anonymous no.
	insider := &identity.Identity{UserID: stranger.ID, Email: "someone@acme.com"}
	outsider := &identity.Identity{UserID: stranger.ID, Email: stranger.Email}
	require.True(t, access.CanAccess(&identity.Identity{UserID: owner.ID, Email: owner.Email}, proj, env.ceiling))
	require.True(t, access.CanAccess(insider, proj, env.ceiling))
	require.False(t, access.CanAccess(outsider, proj, env.ceiling))
	require.False(t, access.CanAccess(nil, proj, env.ceiling))

	// Serving resolves the directory index.
	file, err := env.locator.FindFile(ctx, proj.LiveDeployID, "")
	require.NoError(t, err)
	body, err := io.ReadAll(file.Object.Body)
	require.NoError(t, err)
	file.Object.Body.Close()
	require.Equal(t, "<h1>v1</h1>", string(body))

	// A capability token minted for the project admits its subject.
	secret := []byte("integration-secret")
	raw, err := token.IssueCapability(stranger.ID, "someone@acme.com", proj.ID, secret, time.Now())
	require.NoError(t, err)
	id := token.VerifyCapability(raw, proj.ID, secret, time.Now())
	require.NotNil(t, id)
	require.True(t, access.CanAccess(&identity.Identity{UserID: id.UserID, Email: id.Email}, proj, env.ceiling))

	// Republish: version 2 goes live, version 1 stays fetchable.
	res2 := env.publish(t, owner, "docs", "", map[string]string{"index.html": "<h1>v2</h1>"})
	require.Equal(t, int64(2), res2.Deploy.Version)
	require.Equal(t, "@acme.com", res2.Project.Visibility, "omitted visibility preserved")

	old, err := env.locator.FindFile(ctx, res.Deploy.ID, "")
	require.NoError(t, err)
	old.Object.Body.Close()

	// Share token: grants exactly this project, dies on revoke.
	st, err := env.shareSvc.Create(ctx, proj.ID, owner.ID, "review", "1w")
	require.NoError(t, err)
	live := env.shareSvc.Validate(ctx, st.Token)
	require.NotNil(t, live)
	grant := &identity.Identity{ProjectGrant: live.ProjectID}
	require.True(t, access.CanAccess(grant, proj, env.ceiling))
	require.NoError(t, env.shareSvc.Revoke(ctx, st.ID, owner.ID))
	require.Nil(t, env.shareSvc.Validate(ctx, st.Token))

	// Delete: rows gone, objects swept, caches purged.
	require.NoError(t, env.coordinator.DeleteProject(ctx, owner.ID, owner.Email, "docs"))
	_, err = env.projectSvc.Get(ctx, owner.ID, "docs")
	require.ErrorIs(t, err, project.ErrNotFound)
	require.Eventually(t, func() bool { return env.store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// TestCeilingClampsEverything verifies a restricted server never serves
// beyond its ceiling even for projects marked public.
func TestCeilingClampsEverything(t *testing.T) {
	env := newTestEnv(t, "@acme.com", "acme.com")
	ctx := context.Background()

	owner := env.addUser(t, "owner@acme.com")

	_, err := env.coordinator.Publish(ctx, publish.Request{
		OwnerID:    owner.ID,
		OwnerEmail: owner.Email,
		Name:       "docs",
		Visibility: "public",
		Archive:    []byte("ignored"),
	})
	require.ErrorIs(t, err, project.ErrVisibilityExceedsCeiling)

	// Under the ceiling is fine, but anonymous access still fails the
	// two-sided public check.
	res := env.publish(t, owner, "docs", "@acme.com", map[string]string{"index.html": "x"})
	require.False(t, access.CanAccess(nil, res.Project, env.ceiling))
	require.False(t, access.CacheEligible(nil, res.Project, env.ceiling))
}
