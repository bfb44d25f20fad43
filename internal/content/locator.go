package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/perchhq/perch/internal/domain/user"
	"github.com/perchhq/perch/internal/objectstore"
	"github.com/perchhq/perch/internal/repository"
)

// ErrNotFound indicates no file matched the path in the deploy.
var ErrNotFound = errors.New("file not found")

// File is a located deploy file ready to stream.
type File struct {
	Key    string
	Path   string
	Object *objectstore.Object
}

// Locator maps logical paths to object-store keys.
type Locator struct {
	store objectstore.Store
}

// NewLocator creates a locator over the given store.
func NewLocator(store objectstore.Store) *Locator {
	return &Locator{store: store}
}

// FindFile resolves a validated path within a deploy. Candidates are probed
// concurrently but returned in fixed priority order: the directory index
// first, then the .html fallback, then the verbatim path. The empty path
// probes only index.html.
func (l *Locator) FindFile(ctx context.Context, deployID, path string) (*File, error) {
	var candidates []string
	if path == "" {
		candidates = []string{"index.html"}
	} else {
		candidates = []string{path + "/index.html", path + ".html", path}
	}

	results := make([]*objectstore.Object, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, candidate := range candidates {
		key := deployID + "/" + candidate
		g.Go(func() error {
			obj, err := l.store.Get(gctx, key)
			if err != nil {
				if errors.Is(err, objectstore.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("probing %s: %w", key, err)
			}
			results[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, obj := range results {
			if obj != nil {
				obj.Body.Close()
			}
		}
		return nil, err
	}

	var found *File
	for i, obj := range results {
		if obj == nil {
			continue
		}
		if found == nil {
			found = &File{
				Key:    deployID + "/" + candidates[i],
				Path:   candidates[i],
				Object: obj,
			}
			continue
		}
		obj.Body.Close()
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ResolveOwner maps an owner identifier from the URL to a user. It tries an
// exact ID match, then a case-insensitive email match, and finally - only
// when the server restricts identities to a single domain - a bare
// local-part against that domain.
func ResolveOwner(ctx context.Context, users user.Repository, identifier, singleDomain string) (*user.User, error) {
	if u, err := users.GetByID(ctx, identifier); err == nil {
		return u, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("resolving owner by id: %w", err)
	}

	if strings.Contains(identifier, "@") {
		if u, err := users.GetByEmail(ctx, identifier); err == nil {
			return u, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolving owner by email: %w", err)
		}
		return nil, repository.ErrNotFound
	}

	if singleDomain != "" {
		if u, err := users.GetByEmail(ctx, identifier+"@"+singleDomain); err == nil {
			return u, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolving owner by local part: %w", err)
		}
	}
	return nil, repository.ErrNotFound
}
