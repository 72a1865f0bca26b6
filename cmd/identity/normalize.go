package identity

import "strings"

// NormalizeUsername canonicalizes a username for case-insensitive lookup.
// Trim + lower-case only; unicode confusable handling can be layered on
// later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail canonicalizes an email address for case-insensitive lookup.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
