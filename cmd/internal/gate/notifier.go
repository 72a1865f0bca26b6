package gate

import (
	"sync"
	"time"
)

// Event types pushed to attached clients. Clients only need to know
// whether they are still authenticated; the type is advisory detail.
const (
	EventSessionStarted  = "session.started"
	EventSessionRotated  = "session.rotated"
	EventSessionRevoked  = "session.revoked"
	EventSessionsRevoked = "sessions.revoked_all"
)

// Event is one session-state transition for a user. Authenticated
// reflects the state after the transition.
type Event struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id,omitempty"`
	Authenticated bool      `json:"authenticated"`
	At            time.Time `json:"at"`
}

// Notifier fans session-state transitions out to per-user subscribers.
// Auth handlers publish; attached WebSocket connections subscribe. It
// satisfies the auth API's event sink interface.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]chan Event)}
}

// Publish delivers ev to every subscriber of userID. Slow subscribers
// coalesce to the latest event rather than blocking the publisher.
func (n *Notifier) Publish(userID string, ev Event) {
	if n == nil || userID == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[userID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribe registers for events concerning userID. The cancel function
// removes the subscription and closes the channel.
func (n *Notifier) Subscribe(userID string) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++

	ch := make(chan Event, 1)
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[int]chan Event)
	}
	n.subs[userID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if m, ok := n.subs[userID]; ok {
			if c, ok := m[id]; ok {
				delete(m, id)
				close(c)
			}
			if len(m) == 0 {
				delete(n.subs, userID)
			}
		}
	}
	return ch, cancel
}
