// Package token provides hashing primitives for opaque credentials.
//
// Refresh tokens are never stored in plaintext: they are hashed with
// HMAC-SHA256 when LYCEUM_TOKEN_HMAC_KEY is configured, and with plain
// SHA-256 otherwise (dev fallback). Enforced-HMAC deployments should use
// HashRefreshTokenHexRequireHMAC together with the startup policy check.
package token
