package token

import "errors"

// Key validation failures surface at startup, never per request.
var (
	ErrHMACKeyMissing  = errors.New("token: HMAC key not configured")
	ErrHMACKeyTooShort = errors.New("token: HMAC key below minimum length")
)
