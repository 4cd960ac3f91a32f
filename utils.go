package pagehaven

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// IsValidPath validates that a path string meets the requirements for an
// object path inside a site. It checks that the path:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments (/., /./, or ending with /.)
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
//
// Returns true if the path is valid, false otherwise.
func IsValidPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

var subdomainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// IsValidSubdomain reports whether s is a single lowercase DNS label.
func IsValidSubdomain(s string) bool {
	return subdomainRegex.MatchString(s)
}

// ObjectKey builds the blob storage key of an object: "<siteID>/<path>".
func ObjectKey(siteID uuid.UUID, path string) string {
	return siteID.String() + "/" + path
}

// SplitObjectKey is the inverse of ObjectKey. ok is false when key does not
// start with a site ID segment or has an empty path.
func SplitObjectKey(key string) (siteID uuid.UUID, path string, ok bool) {
	prefix, rest, found := strings.Cut(key, "/")
	if !found || rest == "" {
		return uuid.Nil, "", false
	}

	id, err := uuid.Parse(prefix)
	if err != nil {
		return uuid.Nil, "", false
	}

	return id, rest, true
}
