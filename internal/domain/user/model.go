// Package user holds the account and session models backing the
// authentication methods.
package user

import "time"

// User is an account, provisioned by login or on first sight of a verified
// edge-proxy identity.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a bearer credential. The token value itself is the key.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
