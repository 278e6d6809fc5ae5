package validation

import "unicode"

const minPasswordLength = 3

// ValidUsername reports whether s is a non-empty run of ASCII letters and digits.
func ValidUsername(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// ValidPassword reports whether s is at least three bytes long and contains no
// whitespace. No upper bound and no character class requirements.
func ValidPassword(s string) bool {
	if len(s) < minPasswordLength {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
