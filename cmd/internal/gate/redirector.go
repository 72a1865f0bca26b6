package gate

import (
	"context"
	"sync"
)

// Redirector watches a Store and issues navigation through an injected
// Navigate function: once for the value observed at attach time, and
// once for every transition to a different principal after that. Equal
// consecutive values produce no extra navigation.
type Redirector struct {
	store    *Store
	navigate func(path string)

	mu   sync.Mutex
	last Session
	seen bool
}

// NewRedirector wires a redirector to a store and a navigation sink.
// Both must be non-nil.
func NewRedirector(store *Store, navigate func(path string)) *Redirector {
	return &Redirector{store: store, navigate: navigate}
}

// Attach evaluates the current session value, navigates, and keeps
// re-evaluating on changes until ctx is done. The first navigation
// happens synchronously before Attach returns, so callers can rely on
// the decision having been issued.
func (r *Redirector) Attach(ctx context.Context) {
	ch, cancel := r.store.Subscribe()

	// First evaluation: always navigates, even on the zero value.
	r.evaluate(r.store.Get(), true)

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-ch:
				if !ok {
					return
				}
				r.evaluate(s, false)
			}
		}
	}()
}

func (r *Redirector) evaluate(s Session, force bool) {
	r.mu.Lock()
	if r.seen && !force && s.same(r.last) {
		r.mu.Unlock()
		return
	}
	r.last = s
	r.seen = true
	r.mu.Unlock()

	r.navigate(Destination(s))
}
