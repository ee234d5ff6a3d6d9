package query

import (
	"strings"
	"unicode/utf8"
)

// containsFold reports whether needle, already lowercased, occurs in s ignoring case.
// ASCII needles are matched in place without allocating.
func containsFold(s, needle string) bool {
	if needle == "" {
		return true
	}
	if !isASCII(needle) {
		return strings.Contains(strings.ToLower(s), needle)
	}
	n := len(needle)
	for i := 0; i+n <= len(s); i++ {
		if hasPrefixFoldASCII(s[i:], needle) {
			return true
		}
	}
	return false
}

func hasPrefixFoldASCII(s, lowerPrefix string) bool {
	for j := 0; j < len(lowerPrefix); j++ {
		c := s[j]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lowerPrefix[j] {
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
