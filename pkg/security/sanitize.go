// Package security cleans untrusted text before it reaches the scorers.
package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims s and drops null bytes and control characters other
// than newline and tab. Zero-width and bidi formatting runes are removed too,
// since lures use them to split keywords and domains.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.TrimSpace(RemoveInvisible(removeControlCharacters(s)))
}

// RemoveInvisible strips zero-width joiners, spaces and bidi overrides
func RemoveInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if isInvisible(r) {
			return -1
		}
		return r
	}, s)
}

func isInvisible(r rune) bool {
	switch {
	case r >= 0x200B && r <= 0x200F: // zero-width space/joiners, LRM, RLM
		return true
	case r >= 0x202A && r <= 0x202E: // bidi embeddings and overrides
		return true
	case r >= 0x2060 && r <= 0x2064:
		return true
	case r >= 0x2066 && r <= 0x2069: // bidi isolates
		return true
	case r == 0xFEFF, r == 0x00AD:
		return true
	}
	return false
}

// NormalizeWhitespace collapses every whitespace run to a single space
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateString cuts s to at most max runes.
func TruncateString(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func removeControlCharacters(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
