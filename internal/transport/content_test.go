package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perchhq/perch/internal/testserver"
)

func get(t *testing.T, rawURL string, mod func(*http.Request)) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	if mod != nil {
		mod(req)
	}
	resp, err := noRedirect.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestContent_ServesPublicProject(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "docs", "public", map[string]string{
		"index.html":      "<h1>home</h1>",
		"guide.html":      "<h1>guide</h1>",
		"guide/deep.html": "<h1>deep</h1>",
		"app.3f9d2c1a.js": "js",
	})

	// Directory root serves index.html.
	resp := get(t, ts.Server.URL+"/"+u.ID+"/docs/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "<h1>home</h1>", readBody(t, resp))

	// Extensionless path falls back to the .html variant.
	resp = get(t, ts.Server.URL+"/"+u.ID+"/docs/guide", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<h1>guide</h1>", readBody(t, resp))

	// Content-hashed assets are immutable.
	resp = get(t, ts.Server.URL+"/"+u.ID+"/docs/app.3f9d2c1a.js", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get("Cache-Control"))

	// Owner email and bare local part are not aliases without single-domain.
	resp = get(t, ts.Server.URL+"/owner@acme.com/docs/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContent_SingleDomainLocalPartAlias(t *testing.T) {
	ts := testserver.New(t, testserver.Options{SingleDomain: "acme.com"})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "docs", "public", map[string]string{"index.html": "x"})

	for _, alias := range []string{u.ID, "owner@acme.com", "owner"} {
		resp := get(t, ts.Server.URL+"/"+alias+"/docs/", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "alias %s", alias)
	}
}

func TestContent_BarePathRedirectsToDirectory(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "docs", "public", map[string]string{"index.html": "x"})

	resp := get(t, ts.Server.URL+"/"+u.ID+"/docs", nil)
	require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	require.Equal(t, "/"+u.ID+"/docs/", resp.Header.Get("Location"))
}

func TestContent_InvalidPathIs404(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "docs", "public", map[string]string{"index.html": "x"})

	for _, p := range []string{"a/../b.html", "./x", "a%5Cb.html"} {
		resp := get(t, ts.Server.URL+"/"+u.ID+"/docs/"+p, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, "path %s", p)
	}
}

var uuidShape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Nonexistent projects must follow the exact redirect path of private ones,
// so probing URLs reveals nothing about what exists.
func TestContent_PrivateAndMissingAreIndistinguishable(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "secret", "private", map[string]string{"index.html": "x"})

	paths := []string{
		"/" + u.ID + "/secret/",
		"/" + u.ID + "/no-such-project/",
		"/nobody@acme.com/anything/",
		"/" + u.ID + "/secret/deep/page.html",
		"/" + u.ID + "/no-such-project/deep/page.html",
		"/ghost-owner/ghost/",
	}

	type shape struct {
		status    int
		locPath   string
		returnURL string
		pidShaped bool
	}
	shapes := make([]shape, 0, len(paths))
	for _, p := range paths {
		resp := get(t, ts.Server.URL+p, nil)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err, "path %s", p)
		q := loc.Query()
		shapes = append(shapes, shape{
			status:    resp.StatusCode,
			locPath:   loc.Path,
			returnURL: q.Get("return_url"),
			pidShaped: uuidShape.MatchString(q.Get("project_id")),
		})
	}

	for i, sh := range shapes {
		require.Equal(t, http.StatusFound, sh.status, "path %s", paths[i])
		require.Equal(t, "/auth/content-access", sh.locPath, "path %s", paths[i])
		require.True(t, sh.pidShaped, "path %s: project_id must be UUID-shaped", paths[i])

		ret, err := url.Parse(sh.returnURL)
		require.NoError(t, err)
		require.Equal(t, paths[i], ret.Path, "return_url must round-trip the request path")
	}
}

func TestContent_CapabilityFlow(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	owner := ts.AddUser(t, "owner@acme.com")
	ownerTok := ts.AddSession(t, owner.ID)
	publishProject(t, ts, ownerTok, "secret", "owner@acme.com", map[string]string{"index.html": "<h1>secret</h1>"})

	target := ts.Server.URL + "/" + owner.ID + "/secret/"

	// Anonymous: bounced to issuance.
	resp := get(t, target, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	issuance := ts.Server.URL + resp.Header.Get("Location")

	// Unauthenticated issuance request is refused.
	resp = get(t, issuance, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With a session cookie the endpoint issues a token and bounces back.
	sessTok := ts.AddSession(t, owner.ID)
	resp = get(t, issuance, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_session", Value: sessTok})
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	back, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	ctoken := back.Query().Get("_ctoken")
	require.NotEmpty(t, ctoken)

	// The token in the query grants access and is written into a
	// project-scoped cookie.
	resp = get(t, back.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<h1>secret</h1>", readBody(t, resp))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "perch_ctoken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, "/"+owner.ID+"/secret/", cookie.Path)

	// The cookie alone now suffices.
	resp = get(t, target, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_ctoken", Value: cookie.Value})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The same token is useless on another project.
	publishProject(t, ts, ownerTok, "other", "private", map[string]string{"index.html": "x"})
	resp = get(t, ts.Server.URL+"/"+owner.ID+"/other/", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_ctoken", Value: cookie.Value})
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

// An authenticated requester must get a terminal answer from issuance:
// nonexistent and forbidden projects both end in one identical 404 rather
// than bouncing between content and issuance forever.
func TestContent_IssuanceResolvesProject(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	owner := ts.AddUser(t, "owner@acme.com")
	outsider := ts.AddUser(t, "outsider@other.com")
	ownerTok := ts.AddSession(t, owner.ID)
	publishProject(t, ts, ownerTok, "secret", "private", map[string]string{"index.html": "x"})

	sessTok := ts.AddSession(t, outsider.ID)
	withSession := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_session", Value: sessTok})
	}

	// Follow redirects by hand so a loop fails fast instead of hanging.
	follow := func(path string) *http.Response {
		resp := get(t, ts.Server.URL+path, withSession)
		for hops := 0; resp.StatusCode == http.StatusFound; hops++ {
			require.Less(t, hops, 5, "redirect chain for %s must terminate", path)
			loc := resp.Header.Get("Location")
			if !strings.HasPrefix(loc, "http") {
				loc = ts.Server.URL + loc
			}
			resp = get(t, loc, withSession)
		}
		return resp
	}

	missing := follow("/" + owner.ID + "/no-such-project/")
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
	missingBody := readBody(t, missing)

	denied := follow("/" + owner.ID + "/secret/")
	require.Equal(t, http.StatusNotFound, denied.StatusCode)
	require.Equal(t, missingBody, readBody(t, denied), "denied and missing must answer identically")

	// A caller the project admits still gets a token.
	resp := get(t, ts.Server.URL+"/"+owner.ID+"/secret/", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_session", Value: ownerTok})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContent_IssuanceRejectsForeignReturnURL(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)

	resp := get(t, ts.Server.URL+"/auth/content-access?project_id=p&return_url="+
		url.QueryEscape("https://evil.example.com/phish"), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContent_VisibilityGroupAccess(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	owner := ts.AddUser(t, "owner@acme.com")
	insider := ts.AddUser(t, "insider@acme.com")
	outsider := ts.AddUser(t, "outsider@other.com")
	ownerTok := ts.AddSession(t, owner.ID)

	publishProject(t, ts, ownerTok, "team", "@acme.com", map[string]string{"index.html": "team"})
	target := ts.Server.URL + "/" + owner.ID + "/team/"

	// Members of the domain pass straight through on a session cookie.
	resp := get(t, target, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_session", Value: ts.AddSession(t, insider.ID)})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Outsiders and anonymous visitors are bounced to issuance.
	resp = get(t, target, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_session", Value: ts.AddSession(t, outsider.ID)})
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = get(t, target, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestContent_ShareTokenGrantsSingleProject(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Sharing: true})
	owner := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, owner.ID)

	publishProject(t, ts, tok, "secret", "private", map[string]string{"index.html": "<h1>secret</h1>"})
	publishProject(t, ts, tok, "other", "private", map[string]string{"index.html": "x"})

	resp, created := doJSON(t, http.MethodPost, ts.Server.URL+"/api/projects/secret/share-tokens",
		tok, []byte(`{"name":"review","duration":"1d"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw := created["token"].(string)

	// The share token opens its project for an anonymous visitor and is
	// persisted into a project-scoped, day-capped cookie.
	resp = get(t, ts.Server.URL+"/"+owner.ID+"/secret/?token="+raw, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<h1>secret</h1>", readBody(t, resp))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "perch_share" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, "/"+owner.ID+"/secret/", cookie.Path)
	require.Equal(t, 24*60*60, cookie.MaxAge)

	// The cookie alone keeps the door open.
	resp = get(t, ts.Server.URL+"/"+owner.ID+"/secret/", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_share", Value: cookie.Value})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// But not any other project.
	resp = get(t, ts.Server.URL+"/"+owner.ID+"/other/?token="+raw, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestContent_EdgeCacheOnlyForAnonymousPublic(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "docs", "public", map[string]string{"index.html": "<h1>cached</h1>"})

	// Let the post-publish alias purge finish before priming the cache.
	time.Sleep(50 * time.Millisecond)

	target := ts.Server.URL + "/" + u.ID + "/docs/"

	resp := get(t, target, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)
	require.Equal(t, 1, ts.Cache.Len())

	// Remove the backing object: the cached copy still serves.
	keys, err := ts.Store.ListPrefix(context.Background(), "")
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, ts.Store.Delete(context.Background(), k))
	}
	resp = get(t, target, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<h1>cached</h1>", readBody(t, resp))
}

func TestContent_AuthenticatedResponsesAreNeverCached(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	u := ts.AddUser(t, "owner@acme.com")
	tok := ts.AddSession(t, u.ID)
	publishProject(t, ts, tok, "secret", "private", map[string]string{"index.html": "x"})

	resp := get(t, ts.Server.URL+"/"+u.ID+"/secret/", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "perch_session", Value: ts.AddSession(t, u.ID)})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 0, ts.Cache.Len())
}
