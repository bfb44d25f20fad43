package sharetoken

import "errors"

var (
	// ErrNotFound indicates the token doesn't exist or isn't the caller's.
	ErrNotFound = errors.New("share token not found")
	// ErrLimitReached indicates the project already has the maximum number
	// of active tokens.
	ErrLimitReached = errors.New("active share token limit reached")
	// ErrInvalidDuration indicates a duration outside the fixed buckets.
	ErrInvalidDuration = errors.New("invalid share token duration")
)
