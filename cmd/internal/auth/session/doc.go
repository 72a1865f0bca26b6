// Package session implements Lyceum's multi-device session model.
//
// A session couples a short-lived PASETO v4.public access token with an
// opaque refresh token stored hashed in Postgres. Refresh rotation is
// transactional with reuse detection; revocation works per session and
// per user. The session table is the single authority the web layer
// consults when deciding whether a request is authenticated.
//
// Transport (cookies, headers, websockets) is intentionally out of scope
// here; see cmd/internal/auth/api and cmd/internal/web.
package session
