package edge

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Invalidator purges cached responses for every alias a project is
// reachable under. Purges are best-effort: a failure is logged, never
// surfaced to the triggering request.
type Invalidator struct {
	cache  Cache
	logger *slog.Logger
}

// NewInvalidator creates an invalidator over the shared cache.
func NewInvalidator(cache Cache, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: cache, logger: logger}
}

// Aliases enumerates the owner identifiers a project URL may start with:
// the owner ID, the owner email (case-normalized), and the bare local part
// when the server restricts identities to a single domain.
func Aliases(ownerID, ownerEmail, singleDomain string) []string {
	aliases := []string{ownerID}
	email := strings.ToLower(strings.TrimSpace(ownerEmail))
	if email != "" {
		aliases = append(aliases, email)
		if singleDomain != "" {
			if local, domain, ok := strings.Cut(email, "@"); ok && domain == singleDomain {
				aliases = append(aliases, local)
			}
		}
	}
	return aliases
}

// PurgeProject removes the project's directory root and its index.html
// equivalent under every alias. Purges run concurrently; the call returns
// once all have been dispatched and finished.
func (i *Invalidator) PurgeProject(ctx context.Context, ownerID, ownerEmail, singleDomain, projectName string) {
	var wg sync.WaitGroup
	for _, alias := range Aliases(ownerID, ownerEmail, singleDomain) {
		base := "/" + alias + "/" + projectName + "/"
		for _, key := range []string{base, base + "index.html"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						i.logger.Warn("cache purge panicked", "key", key, "panic", r)
					}
				}()
				i.cache.Purge(key)
			}()
		}
	}
	wg.Wait()
}
