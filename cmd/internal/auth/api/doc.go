// Package authapi exposes Lyceum's HTTP authentication endpoints:
// signup, login, refresh rotation, logout, logout-everywhere and the
// current-user lookup. It glues the identity store and the session
// service to the wire, and owns the web cookie transport (HttpOnly
// refresh cookie plus CSRF double-submit) used by browser clients.
package authapi
