package util

import (
	"strings"
	"unicode"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// FirstLine returns the first non-empty line of s, cleaned.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if l := CleanText(line); l != "" {
			return l
		}
	}
	return ""
}

// Tokens lower-cases s and splits it into alphanumeric words. camelCase and
// snake_case keys split the same way as free text.
func Tokens(s string) []string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = unicode.IsLower(r)
		default:
			b.WriteRune(' ')
			prevLower = false
		}
	}
	return strings.Fields(b.String())
}
