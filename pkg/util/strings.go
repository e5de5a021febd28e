package util

import "unicode/utf8"

func IsASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func IsASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// AllRunes reports whether every rune of s satisfies p. Empty strings pass.
func AllRunes(s string, p func(rune) bool) bool {
	for _, r := range s {
		if !p(r) {
			return false
		}
	}

	return true
}

// RuneLength counts characters rather than bytes
func RuneLength(s string) int {
	return utf8.RuneCountInString(s)
}
