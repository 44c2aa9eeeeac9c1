package calls

import (
	"regexp"
	"strings"
	"unicode"
)

// International format: leading +, country code, 7-15 digits total (E.164).
var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// NormalizePhone strips all whitespace so "+34 612 345 678" and
// "+34612345678" compare equal. Used both for input validation and for
// matching phone numbers out of the platform's failed-run payloads.
func NormalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// ValidPhone reports whether the normalized number is in international
// format.
func ValidPhone(normalized string) bool {
	return phonePattern.MatchString(normalized)
}
