package auth

import "strings"

// NormalizePhone coerces user input into E.164, defaulting to the Indian +91
// country code. Input that cannot be normalized yields "".
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "91"):
		return "+" + digits
	case strings.HasPrefix(trimmed, "+"):
		return trimmed
	case len(digits) >= 10:
		return "+91" + digits[len(digits)-10:]
	}
	return ""
}
