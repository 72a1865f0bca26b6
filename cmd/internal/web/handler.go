package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"lyceum/cmd/internal/gate"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Handler serves the page routes. All dashboard pages sit behind
// RequireSession; the landing route redirects based on the same
// decision function the reactive redirector uses.
type Handler struct {
	log      *slog.Logger
	sessions SessionResolver
	users    UserLoader

	refreshCookieName string

	landing   *template.Template
	login     *template.Template
	signup    *template.Template
	dashboard *template.Template
	section   *template.Template
}

// NewHandler builds the web surface. refreshCookieName must match the
// auth API's cookie transport so both layers read the same cookie.
func NewHandler(log *slog.Logger, sessions SessionResolver, users UserLoader, refreshCookieName string) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:               log,
		sessions:          sessions,
		users:             users,
		refreshCookieName: refreshCookieName,

		landing:   template.Must(template.ParseFS(templatesFS, "templates/landing.html")),
		login:     parsePage("login.html"),
		signup:    parsePage("signup.html"),
		dashboard: parsePage("dashboard.html"),
		section:   parsePage("section.html"),
	}
}

func parsePage(page string) *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/base.html", "templates/"+page))
}

// Register wires the page routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/", h.handleLanding)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/signup", h.handleSignup)
	mux.Handle("/dashboard", h.RequireSession(http.HandlerFunc(h.handleDashboard)))
	mux.Handle("/dashboard/chat", h.RequireSession(h.sectionHandler("Chat")))
	mux.Handle("/dashboard/questions", h.RequireSession(h.sectionHandler("Questions")))
	mux.Handle("/dashboard/analytics", h.RequireSession(h.sectionHandler("Analytics")))
}

type pageData struct {
	Principal   *Principal
	Section     string
	Destination string
}

// handleLanding is the landing route: evaluate the session once and
// answer with a redirect plus a minimal interstitial body.
func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	// ServeMux routes every unknown path here; only the root is the
	// landing route.
	if r.URL.Path != gate.PathLanding {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, _ := h.resolveSession(r)
	dest := gate.Destination(sess)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", dest)
	w.WriteHeader(http.StatusSeeOther)
	if r.Method == http.MethodGet {
		if err := h.landing.Execute(w, pageData{Destination: dest}); err != nil {
			h.log.Error("web.landing.render.fail", "err", err)
		}
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// An already-authenticated visitor has no business on the login
	// page; send them where the landing decision would.
	if sess, _ := h.resolveSession(r); sess.Authenticated() {
		http.Redirect(w, r, gate.PathDashboard, http.StatusSeeOther)
		return
	}

	h.render(w, h.login, pageData{})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if sess, _ := h.resolveSession(r); sess.Authenticated() {
		http.Redirect(w, r, gate.PathDashboard, http.StatusSeeOther)
		return
	}
	h.render(w, h.signup, pageData{})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	h.render(w, h.dashboard, pageData{Principal: &p})
}

func (h *Handler) sectionHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p, _ := PrincipalFrom(r.Context())
		h.render(w, h.section, pageData{Principal: &p, Section: name})
	})
}

func (h *Handler) render(w http.ResponseWriter, t *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		h.log.Error("web.render.fail", "template", t.Name(), "err", err)
	}
}
