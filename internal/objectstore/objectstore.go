// Package objectstore abstracts the blob backend that deploy files live in.
// Keys are "{deployID}/{path}".
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates the key does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a fetched blob. Body must be closed by the caller.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// Store is the object storage interface consumed by the content server and
// the publish coordinator.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// ListPrefix returns every key under the prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}
