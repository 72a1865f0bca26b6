package gate

import "time"

// AuthEvents adapts a Notifier to the auth API's SessionEventSink so
// login/logout/rotation transitions reach attached WebSocket clients.
type AuthEvents struct {
	N *Notifier
}

func (a AuthEvents) SessionStarted(userID, sessionID string) {
	a.publish(userID, Event{Type: EventSessionStarted, SessionID: sessionID, Authenticated: true})
}

func (a AuthEvents) SessionRotated(userID, _ string, newSessionID string) {
	a.publish(userID, Event{Type: EventSessionRotated, SessionID: newSessionID, Authenticated: true})
}

func (a AuthEvents) SessionRevoked(userID, sessionID string) {
	a.publish(userID, Event{Type: EventSessionRevoked, SessionID: sessionID, Authenticated: false})
}

func (a AuthEvents) SessionsRevoked(userID string) {
	a.publish(userID, Event{Type: EventSessionsRevoked, Authenticated: false})
}

func (a AuthEvents) publish(userID string, ev Event) {
	if a.N == nil {
		return
	}
	ev.At = time.Now().UTC()
	a.N.Publish(userID, ev)
}
