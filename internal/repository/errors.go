// Package repository defines storage-level errors shared by all
// repository implementations.
package repository

import "errors"

// ErrNotFound indicates the requested row does not exist. Domain services
// map it to their own not-found errors.
var ErrNotFound = errors.New("not found")
