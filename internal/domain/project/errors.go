package project

import "errors"

var (
	// ErrNotFound indicates the project doesn't exist.
	ErrNotFound = errors.New("project not found")
	// ErrNameTaken indicates another project of the same owner has the name.
	ErrNameTaken = errors.New("project name already taken")
	// ErrInvalidName indicates an unusable project name.
	ErrInvalidName = errors.New("invalid project name")
	// ErrVisibilityExceedsCeiling indicates the requested visibility is wider
	// than the server allows.
	ErrVisibilityExceedsCeiling = errors.New("visibility exceeds server ceiling")
)
