// Package access combines identity, project visibility, and the server
// ceiling into allow/deny and cache-eligibility decisions.
package access

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/perchhq/perch/internal/auth/identity"
	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/visibility"
)

// CanAccess decides whether the identity (nil when anonymous) may see the
// project. Owners always pass. An unparseable or unset visibility fails
// closed. Anonymous requests pass only the strict two-sided public check;
// authenticated requests must match the visibility AND the visibility must
// sit under the server ceiling.
func CanAccess(id *identity.Identity, proj *project.Project, ceiling visibility.Group) bool {
	if proj == nil {
		return false
	}
	if id != nil && id.UserID != "" && id.UserID == proj.OwnerID {
		return true
	}
	if id != nil && id.ProjectGrant != "" {
		return id.ProjectGrant == proj.ID
	}
	vis, err := visibility.Parse(proj.Visibility)
	if err != nil {
		return false
	}
	if id == nil {
		return visibility.IsPublic(vis, ceiling)
	}
	return vis.Matches(id.Email) && visibility.Contains(ceiling, vis)
}

// CacheEligible reports whether a response for this project may be served
// from the shared edge cache. Only the anonymous-public case qualifies:
// never cache a response whose decision depended on an identity.
func CacheEligible(id *identity.Identity, proj *project.Project, ceiling visibility.Group) bool {
	if id != nil || proj == nil {
		return false
	}
	vis, err := visibility.Parse(proj.Visibility)
	if err != nil {
		return false
	}
	return visibility.IsPublic(vis, ceiling)
}

// SyntheticProjectID derives a deterministic, UUID-shaped identifier from
// the requested path segments. Requests for projects that do not exist are
// routed through the capability-issuance redirect with this ID, so their
// response shape is identical to an existing private project's.
func SyntheticProjectID(owner, name string) string {
	sum := blake3.Sum256([]byte(owner + "/" + name))
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.BigEndian.Uint32(sum[0:4]),
		binary.BigEndian.Uint16(sum[4:6]),
		binary.BigEndian.Uint16(sum[6:8]),
		binary.BigEndian.Uint16(sum[8:10]),
		sum[10:16],
	)
}
