package password

import "errors"

// Sentinel errors for policy and hash failures. The auth API maps these to
// user-facing validation messages; keep them stable.
var (
	ErrPasswordTooShort = errors.New("password: below minimum length")
	ErrPasswordTooLong  = errors.New("password: above maximum length")
	ErrWeakPassword     = errors.New("password: rejected by strength policy")
	ErrInvalidHash      = errors.New("password: stored hash is malformed")
)
