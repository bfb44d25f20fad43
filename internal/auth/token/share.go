package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// SharePrefix lets the resolver reject non-share-token values without a
// database lookup.
const SharePrefix = "shr_"

const (
	shareTokenBytes = 16
	maxNameLength   = 64
)

// NewShareToken generates an opaque share token: the prefix plus 16 random
// bytes in URL-safe base64.
func NewShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	return SharePrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HasSharePrefix reports whether a raw value is even a candidate share
// token. A mismatch short-circuits validation before any lookup.
func HasSharePrefix(raw string) bool {
	return strings.HasPrefix(raw, SharePrefix) && len(raw) > len(SharePrefix)
}

// SanitizeName normalizes a user-supplied token name: trimmed, inner
// whitespace collapsed, capped at 64 characters.
func SanitizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if len(name) > maxNameLength {
		name = strings.TrimSpace(name[:maxNameLength])
	}
	return name
}

// ErrUnknownDuration rejects duration strings outside the fixed buckets.
var ErrUnknownDuration = fmt.Errorf("unknown share token duration")

// ExpiryFor maps a duration bucket to an absolute expiry. Buckets are fixed:
// one day, one week, one month (30 days).
func ExpiryFor(duration string, now time.Time) (time.Time, error) {
	switch duration {
	case "1d":
		return now.Add(24 * time.Hour), nil
	case "1w":
		return now.Add(7 * 24 * time.Hour), nil
	case "1m":
		return now.Add(30 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownDuration, duration)
	}
}
