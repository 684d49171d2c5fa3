package stylegen

import (
	"strings"
	"unicode/utf8"
)

// TruncateUTF8 shortens s to at most maxBytes bytes without splitting a code
// point. It walks whole runes and stops before the first rune whose inclusion
// would exceed the budget. Invalid bytes in s count as one-byte runes and are
// dropped from the result, which is always valid UTF-8.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes && utf8.ValidString(s) {
		return s
	}

	var sb strings.Builder
	sb.Grow(min(len(s), maxBytes))
	used := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if used+size > maxBytes {
			break
		}
		sb.WriteString(s[i-size : i])
		used += size
	}
	return sb.String()
}

// truncateRunes keeps at most n runes of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// collapseWhitespace replaces every whitespace run with a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
