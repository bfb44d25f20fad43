// Package content resolves logical request paths to object-store keys and
// carries the header policy for served files.
package content

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidPath rejects paths before any store lookup.
var ErrInvalidPath = errors.New("invalid path")

// hostileChars are rejected wherever they appear in a path. They are either
// meaningless in a URL path or hostile to common filesystems.
const hostileChars = "\\\x00<>:\"|?*"

// CleanPath validates and normalizes a requested file path. The empty path
// is legal (it maps to the site root); everything else must be a relative,
// traversal-free, decodable path.
func CleanPath(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", ErrInvalidPath
	}
	if raw != "" && decoded == "" {
		// Percent-encoding that decodes to nothing is an anomaly.
		return "", ErrInvalidPath
	}
	if strings.HasPrefix(decoded, "/") {
		return "", ErrInvalidPath
	}
	if strings.ContainsAny(decoded, hostileChars) {
		return "", ErrInvalidPath
	}
	for _, r := range decoded {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidPath
		}
	}

	decoded = strings.TrimSuffix(decoded, "/")
	if decoded == "" {
		return "", nil
	}
	for _, seg := range strings.Split(decoded, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidPath
		}
	}
	return decoded, nil
}
