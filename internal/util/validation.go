package util

import (
	"regexp"
	"strings"
)

var (
	phoneRegex     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	phoneInText    = regexp.MustCompile(`\+[1-9](?:[ \-.()]?\d){1,14}`)
	phoneSeparator = regexp.MustCompile(`[ \-.()]`)
)

// IsValidPhone reports whether s is an E.164 number: '+', then 2 to 15
// digits with no leading zero.
func IsValidPhone(s string) bool {
	return phoneRegex.MatchString(s)
}

// ExtractPhone finds the first E.164 number in free text. Single spaces,
// dashes, dots or parentheses between digits are dropped so "+92 300-123 4567"
// reads as one number. When nothing matches the trimmed text is returned for
// the caller to validate.
func ExtractPhone(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := phoneInText.FindString(trimmed); m != "" {
		return phoneSeparator.ReplaceAllString(m, "")
	}
	return trimmed
}

// StripChannelPrefix removes the "whatsapp:" or "sms:" addressing prefix.
func StripChannelPrefix(address string) string {
	for _, p := range []string{"whatsapp:", "sms:"} {
		if strings.HasPrefix(address, p) {
			return strings.TrimPrefix(address, p)
		}
	}
	return address
}
