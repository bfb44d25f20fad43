package content

import (
	"net/http"
	"path"
	"regexp"
	"strings"
)

var contentTypes = map[string]string{
	".html":        "text/html; charset=utf-8",
	".htm":         "text/html; charset=utf-8",
	".css":         "text/css; charset=utf-8",
	".js":          "text/javascript; charset=utf-8",
	".mjs":         "text/javascript; charset=utf-8",
	".json":        "application/json",
	".xml":         "application/xml",
	".txt":         "text/plain; charset=utf-8",
	".md":          "text/markdown; charset=utf-8",
	".svg":         "image/svg+xml",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".webp":        "image/webp",
	".avif":        "image/avif",
	".ico":         "image/x-icon",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".ttf":         "font/ttf",
	".otf":         "font/otf",
	".pdf":         "application/pdf",
	".wasm":        "application/wasm",
	".webmanifest": "application/manifest+json",
}

// hashedName matches content-hashed build outputs like app.3f9d2c1a.js or
// chunk-a1b2c3d4e5f6.css.
var hashedName = regexp.MustCompile(`[.-][0-9a-fA-F]{8,}\.[a-zA-Z0-9]+$`)

// ContentTypeFor returns the Content-Type for a served path, keyed by
// extension only.
func ContentTypeFor(p string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// CacheControlFor tiers browser caching by asset class: HTML revalidates
// quickly, content-hashed filenames are immutable, everything else gets a
// medium TTL.
func CacheControlFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == ".html" || ext == ".htm" || ext == "" {
		return "public, max-age=60, must-revalidate"
	}
	if hashedName.MatchString(p) {
		return "public, max-age=31536000, immutable"
	}
	return "public, max-age=3600"
}

// SetSecurityHeaders applies the fixed header set carried by every content
// response.
func SetSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}
