package gate

// User is the authenticated principal as the gate sees it: an opaque
// record. The gate never inspects anything beyond presence.
type User struct {
	ID   string
	Role string
}

// Session is the single client-visible session value. A nil User means
// the visitor is not (or not yet) authenticated.
type Session struct {
	User *User
}

// Authenticated reports whether the session carries a user.
func (s Session) Authenticated() bool {
	return s.User != nil && s.User.ID != ""
}

// same reports whether two session values represent the same principal.
// Transitions are keyed on this, not on struct equality: a refreshed
// session for the same user is not a transition.
func (s Session) same(o Session) bool {
	switch {
	case s.User == nil && o.User == nil:
		return true
	case s.User == nil || o.User == nil:
		return false
	default:
		return s.User.ID == o.User.ID
	}
}
