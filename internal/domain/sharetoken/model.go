// Package sharetoken manages opaque, database-backed access tokens that a
// project owner can hand out for a bounded period.
package sharetoken

import "time"

// ShareToken is one issued token. Rows are never deleted; RevokedAt marks a
// token dead for audit purposes. Active means revoked_at IS NULL and
// expires_at is in the future.
type ShareToken struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	OwnerID   string     `json:"owner_id"`
	Token     string     `json:"token,omitempty"`
	Name      string     `json:"name"`
	Duration  string     `json:"duration"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the token still grants access at the given time.
func (t *ShareToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
