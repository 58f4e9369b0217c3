// Package textutil provides small text sanitization helpers for media keys
// and filesystem names.
package textutil

import "strings"

// SanitizeMediaKey converts a filename into a form safe for both the
// filesystem and a URL path segment. ASCII letters, digits, dots, dashes,
// and underscores pass through; everything else becomes an underscore.
// Returns "media" when nothing usable remains.
func SanitizeMediaKey(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "media"
	}
	return out
}
