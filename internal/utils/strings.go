package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName NFC-normalizes a display name and collapses runs of whitespace,
// so "Zoé  Li" and "Zoé Li" store identically.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NilIfBlank returns nil for strings that are empty after trimming.
func NilIfBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeEmail normalizes email addresses (lowercase and trim)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps ASCII digits and a leading +. Compatibility forms such
// as fullwidth digits are folded first; digits from other scripts are dropped,
// so one number never yields two different keys.
func NormalizePhone(phone string) string {
	cleaned := strings.TrimSpace(norm.NFKC.String(phone))
	if cleaned == "" {
		return ""
	}

	var result strings.Builder
	for i, r := range cleaned {
		if i == 0 && r == '+' {
			result.WriteRune(r)
		} else if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// IsValidEmail performs basic email validation
func IsValidEmail(email string) bool {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return false
	}

	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return false
	}

	local, domain := parts[0], parts[1]
	return len(local) > 0 && len(domain) > 2 && strings.Contains(domain, ".")
}

// IsValidPhone performs basic phone validation
func IsValidPhone(phone string) bool {
	normalized := NormalizePhone(phone)
	if len(normalized) < 7 {
		return false
	}

	first := normalized[0]
	return first == '+' || (first >= '0' && first <= '9')
}
