package authapi

// SessionEventSink receives session-state transitions so other parts of
// the app (the WebSocket notifier in particular) can push them to
// attached clients. Implementations must not block.
type SessionEventSink interface {
	SessionStarted(userID, sessionID string)
	SessionRotated(userID, oldSessionID, newSessionID string)
	SessionRevoked(userID, sessionID string)
	SessionsRevoked(userID string)
}

// NoopSessionEvents is the default sink.
type NoopSessionEvents struct{}

func (NoopSessionEvents) SessionStarted(_, _ string)    {}
func (NoopSessionEvents) SessionRotated(_, _, _ string) {}
func (NoopSessionEvents) SessionRevoked(_, _ string)    {}
func (NoopSessionEvents) SessionsRevoked(_ string)      {}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithSessionEvents overrides the default no-op event sink.
func WithSessionEvents(sink SessionEventSink) HandlerOption {
	return func(h *Handler) {
		if h == nil || sink == nil {
			return
		}
		h.events = sink
	}
}
