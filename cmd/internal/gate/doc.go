// Package gate decides where a visitor lands based on their session
// state and keeps that decision current while the visitor stays
// attached.
//
// The decision itself is a pure function: an authenticated session goes
// to the dashboard, anything else goes to the login page. Around it the
// package provides a small reactive state container (Store), a
// Redirector that re-issues navigation whenever the session value
// transitions, and a WebSocket notifier that pushes session-state
// changes to connected clients so they can re-run the decision without
// polling.
package gate
