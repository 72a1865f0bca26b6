package gate

import "sync"

// Store holds the current session value and fans out changes to
// subscribers. It is the injectable state container the redirector and
// the web surface read from; login/logout paths are its only writers.
type Store struct {
	mu          sync.Mutex
	current     Session
	initialized bool
	subs        map[int]chan Session
	nextSubID   int
}

// NewStore returns an empty store. Until the first Set the session is
// treated as unauthenticated and Initialized reports false.
func NewStore() *Store {
	return &Store{subs: make(map[int]chan Session)}
}

// Get returns the current session value. Before the first Set this is
// the zero Session (unauthenticated).
func (st *Store) Get() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Initialized reports whether the store has received at least one
// session value. Callers that want to avoid routing on a not-yet-proven
// state can wait for this; the redirector itself does not.
func (st *Store) Initialized() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.initialized
}

// Set replaces the session value and notifies all subscribers.
// Subscriber channels coalesce: a slow subscriber sees the latest value,
// not every intermediate one.
func (st *Store) Set(s Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.current = s
	st.initialized = true

	for _, ch := range st.subs {
		select {
		case ch <- s:
		default:
			// Drop the stale value, keep the latest.
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// Clear resets to the unauthenticated session. The store stays
// initialized: an explicit logout is a known state, not an unknown one.
func (st *Store) Clear() {
	st.Set(Session{})
}

// Subscribe registers for session updates. The returned channel receives
// the value of every Set after this call (coalesced under load). The
// cancel function removes the subscription and closes the channel.
func (st *Store) Subscribe() (<-chan Session, func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := st.nextSubID
	st.nextSubID++

	ch := make(chan Session, 1)
	st.subs[id] = ch

	cancel := func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if c, ok := st.subs[id]; ok {
			delete(st.subs, id)
			close(c)
		}
	}
	return ch, cancel
}
