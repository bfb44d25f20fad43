// Package token issues and verifies the two token families used on the
// content host: project-scoped capability JWTs and opaque share tokens.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer and Audience are fixed for every capability token.
	Issuer   = "perch"
	Audience = "perch-content"

	// CapabilityTTL bounds how long a capability token grants access.
	CapabilityTTL = time.Hour
)

// Identity is the verified subject of a capability token.
type Identity struct {
	UserID string
	Email  string
}

// capabilityClaims is the wire claim set. The pid claim scopes the token to
// a single project.
type capabilityClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	ProjectID string `json:"pid"`
}

// IssueCapability signs a capability token for one user on one project.
func IssueCapability(userID, email, projectID string, secret []byte, now time.Time) (string, error) {
	claims := capabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CapabilityTTL)),
		},
		Email:     email,
		ProjectID: projectID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyCapability validates a capability token against the project being
// accessed. It returns nil on any failure: bad signature, wrong algorithm,
// wrong issuer or audience, expired, or a pid that does not match. Callers
// must not learn which check failed.
func VerifyCapability(raw, projectID string, secret []byte, now time.Time) *Identity {
	if raw == "" || projectID == "" {
		return nil
	}
	var claims capabilityClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil
	}
	if claims.ProjectID != projectID || claims.Subject == "" {
		return nil
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}
}
