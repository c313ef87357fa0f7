package utils

import (
	"strings"
	"unicode/utf8"
)

// SanitizeFileName replaces characters that are not allowed in file names on
// common filesystems with '_'. Distinct inputs may map to the same output.
func SanitizeFileName(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, key)
}

// Truncate shortens s to at most n bytes for log output, cutting on a rune
// boundary.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
