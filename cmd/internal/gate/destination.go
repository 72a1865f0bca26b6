package gate

// Route surface shared by the redirector and the web handlers.
const (
	PathLanding   = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// Destination maps a session value to the landing decision.
// Uninitialized or unauthenticated sessions go to login; a present user
// goes to the dashboard.
func Destination(s Session) string {
	if s.Authenticated() {
		return PathDashboard
	}
	return PathLogin
}
