package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/perchhq/perch/internal/auth/token"
	"github.com/perchhq/perch/internal/domain/user"
	"github.com/perchhq/perch/internal/repository"
)

// Credential carriers. CapabilityParam/Cookie hold project capability JWTs;
// ShareParam/Cookie hold opaque share tokens.
const (
	APIKeyHeader     = "X-API-Key"
	EdgeProxyHeader  = "Cf-Access-Jwt-Assertion"
	SessionCookie    = "perch_session"
	CapabilityParam  = "_ctoken"
	CapabilityCookie = "perch_ctoken"
	ShareParam       = "token"
	ShareCookie      = "perch_share"
)

// BearerSession authenticates Authorization: Bearer values against the
// sessions table. It deliberately bypasses any session library: expiry is
// checked in SQL and nothing else is consulted.
type BearerSession struct {
	Sessions user.SessionRepository
	Now      func() time.Time
}

func (m *BearerSession) Name() string { return "bearer_session" }

func (m *BearerSession) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if raw == "" {
		return nil, nil
	}
	u, err := m.Sessions.GetActive(ctx, raw, m.now())
	if err != nil {
		return nil, fmt.Errorf("bearer session lookup: %w", err)
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}

func (m *BearerSession) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// APIKey authenticates the X-API-Key header. Presence of the header is
// terminal: an invalid key must not silently degrade to cookie auth.
type APIKey struct {
	Keys user.APIKeyRepository
}

func (m *APIKey) Name() string { return "api_key" }

func (m *APIKey) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	raw := r.Header.Get(APIKeyHeader)
	if raw == "" {
		return nil, nil
	}
	u, err := m.Keys.GetUser(ctx, HashAPIKey(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid api key", ErrStop)
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}

// HashAPIKey is the storage form of an API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// EdgeProxy validates an identity assertion minted by an authenticating
// edge proxy (Cloudflare Access mode). The JWT is checked against a cached
// JWKS with the issuer pinned to the configured team domain. Users are
// auto-provisioned on first sight of a verified email.
type EdgeProxy struct {
	Keys     *JWKSCache
	Users    user.Repository
	Issuer   string
	Audience string
	Logger   *slog.Logger
	Now      func() time.Time
}

type edgeProxyClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func (m *EdgeProxy) Name() string { return "edge_proxy" }

func (m *EdgeProxy) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	raw := r.Header.Get(EdgeProxyHeader)
	if raw == "" {
		return nil, nil
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	var claims edgeProxyClaims
	_, err := jwt.ParseWithClaims(raw, &claims, m.Keys.Keyfunc(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(m.Issuer),
		jwt.WithAudience(m.Audience),
		jwt.WithTimeFunc(func() time.Time { return now() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("edge proxy assertion: %w", err)
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, fmt.Errorf("edge proxy assertion missing email")
	}

	u, err := m.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		u = &user.User{ID: uuid.NewString(), Email: email, CreatedAt: now()}
		if err := m.Users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("provisioning user: %w", err)
		}
		if m.Logger != nil {
			m.Logger.Info("auto-provisioned user", "email", email)
		}
	} else if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}

// ShareTokenValidator resolves an opaque share token to its project.
type ShareTokenValidator interface {
	ValidateShareToken(ctx context.Context, raw string) (projectID string, ok bool)
}

// ContentToken authenticates capability JWTs and share tokens. It applies
// only on the content-serving path: requests without a project scope in
// context are skipped. The query parameter wins over the cookie so that a
// fresh redirect always takes effect.
type ContentToken struct {
	Secret []byte
	Shares ShareTokenValidator
	Now    func() time.Time
}

func (m *ContentToken) Name() string { return "content_token" }

func (m *ContentToken) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	projectID, ok := ProjectScopeFromContext(ctx)
	if !ok {
		return nil, nil
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	for _, raw := range candidateValues(r, CapabilityParam, CapabilityCookie) {
		if id := token.VerifyCapability(raw, projectID, m.Secret, now); id != nil {
			return &Identity{UserID: id.UserID, Email: id.Email}, nil
		}
	}

	if m.Shares != nil {
		for _, raw := range candidateValues(r, ShareParam, ShareCookie) {
			if !token.HasSharePrefix(raw) {
				continue
			}
			if pid, ok := m.Shares.ValidateShareToken(ctx, raw); ok && pid == projectID {
				return &Identity{ProjectGrant: pid}, nil
			}
		}
	}
	return nil, nil
}

// candidateValues returns the query parameter first, then the cookie.
func candidateValues(r *http.Request, param, cookie string) []string {
	var vals []string
	if v := r.URL.Query().Get(param); v != "" {
		vals = append(vals, v)
	}
	if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
		vals = append(vals, c.Value)
	}
	return vals
}

// CookieSession authenticates the standard browser session cookie.
type CookieSession struct {
	Sessions user.SessionRepository
	Now      func() time.Time
}

func (m *CookieSession) Name() string { return "session_cookie" }

func (m *CookieSession) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	u, err := m.Sessions.GetActive(ctx, c.Value, now)
	if err != nil {
		return nil, fmt.Errorf("cookie session lookup: %w", err)
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}
