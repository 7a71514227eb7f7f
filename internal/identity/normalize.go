package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultCountryCode is the national prefix assumed when a phone number
// starts with a trunk zero.
const DefaultCountryCode = "971"

// NormalizeEmail lower-cases and trims an email. It returns "" when the
// input is empty or whitespace-only; no validation beyond that is done.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone strips every non-digit character and rewrites the number
// into a +<digits> form. Numbers already carrying the country code keep
// it; a leading trunk zero is replaced with the country code; anything
// else is prefixed with + as-is. Normalization is best-effort and never
// fails; malformed numbers simply never match anything downstream.
func NormalizePhone(s, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, countryCode):
		return "+" + digits
	case digits[0] == '0':
		return "+" + countryCode + digits[1:]
	default:
		return "+" + digits
	}
}

// HashEmail returns the SHA-256 hex digest of the lower-cased, trimmed
// email. This is the hash ad platforms apply to identity fields, so a
// hashed match is exact string equality of digests.
func HashEmail(email string) string {
	normalized := NormalizeEmail(email)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Canonical resolves the join key for an event: the normalized email if
// present, else the normalized phone, else "". Identity resolution is
// deliberately not a transitive merge across email and phone: an event
// carrying only a phone never merges with one carrying only an email.
func Canonical(email, phone, countryCode string) string {
	if e := NormalizeEmail(email); e != "" {
		return e
	}
	return NormalizePhone(phone, countryCode)
}
