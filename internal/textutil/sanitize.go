package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes a target name safe to use as a file or directory
// name. Path separators, colons, and asterisks become dashes; the remaining
// reserved characters are dropped. Surrounding whitespace is trimmed.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	return strings.TrimSpace(cleaned)
}

// SanitizeToken lowercases a target name into a filesystem-safe slug. ASCII
// letters and digits pass through, hyphens and underscores are kept, and
// anything else becomes an underscore. Empty or fully-unsafe input yields
// "unknown".
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r < 128 && unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		case r < 128 && unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
