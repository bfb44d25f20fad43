// Package identity resolves inbound requests to at most one authenticated
// identity by trying an ordered chain of methods.
package identity

// Identity is the transient result of authentication. It never outlives a
// single request.
type Identity struct {
	UserID string
	Email  string

	// ProjectGrant is set instead of a user identity when access was proven
	// by an active share token: it authorizes exactly that project and
	// nothing else.
	ProjectGrant string
}
