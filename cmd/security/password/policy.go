package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks the password against policy. It does not mutate input.
func (c Config) Validate(pw string) error {
	// Count runes, not bytes, to be user-friendly with non-ASCII passwords.
	n := utf8.RuneCountInString(pw)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(pw) {
		return ErrWeakPassword
	}

	return nil
}

// looksVeryWeak is intentionally minimal; a full strength estimator is a
// non-goal.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	// All-same-character strings.
	allSame := true
	var first rune
	for i, r := range s {
		if i == 0 {
			first = r
			continue
		}
		if r != first {
			allSame = false
			break
		}
	}
	if allSame {
		return true
	}

	// Short digit-only strings (PIN-like).
	onlyDigits := true
	for _, r := range s {
		if !unicode.IsDigit(r) {
			onlyDigits = false
			break
		}
	}
	if onlyDigits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password123", "123456", "123456789", "qwerty", "qwerty123", "11111111":
		return true
	}

	return false
}
