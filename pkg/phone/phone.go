// Package phone normalizes phone numbers for identity matching.
package phone

import "strings"

// NormalizeE164 converts a raw phone number into E.164 form. A leading '+' means
// the number is already international; otherwise the country calling code is
// prepended. Separators and formatting characters are stripped.
func NormalizeE164(raw, countryCode string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	international := strings.HasPrefix(raw, "+")
	digits := Digits(raw)
	if digits == "" {
		return ""
	}

	if international {
		return "+" + digits
	}
	return "+" + Digits(countryCode) + digits
}

// Digits strips everything but decimal digits. Used both for E.164 assembly and
// for duplicate grouping, where numbers must compare equal regardless of
// formatting.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
