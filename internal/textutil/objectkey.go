// Package textutil shapes user-supplied names into object storage keys.
package textutil

import (
	"strings"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"#", "",
	"%", "",
)

// SanitizeFileName replaces characters that are unsafe in an object key
// segment. Separators become dashes; other unsafe characters are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// KeySegment converts a canonical group key into a lowercase ASCII prefix.
// Anything outside [a-z0-9_-] becomes an underscore. Returns "group" when
// nothing usable remains.
func KeySegment(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "group"
	}
	return out
}

// ObjectKey builds the storage key for one upload session. The session id
// keeps keys unique even when two groups share a sanitized prefix.
func ObjectKey(groupKey, sessionID, filename string) string {
	name := SanitizeFileName(filename)
	if name == "" {
		name = "upload"
	}
	return KeySegment(groupKey) + "/" + sessionID + "/" + name
}
