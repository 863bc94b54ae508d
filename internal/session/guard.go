package session

import "net/http"

// Decision is the route guard's verdict for a protected view.
type Decision int

const (
	// DecisionPending means the startup verification pass has not resolved
	// yet; render a loading state.
	DecisionPending Decision = iota
	// DecisionAllow means the session is authenticated.
	DecisionAllow
	// DecisionRedirect means the visitor must be sent to the login entry
	// point.
	DecisionRedirect
)

// RouteGuard gates protected views on session cache state. It holds no state
// of its own.
type RouteGuard struct {
	cache    *Cache
	loginURL string
}

func NewRouteGuard(cache *Cache, loginURL string) *RouteGuard {
	return &RouteGuard{cache: cache, loginURL: loginURL}
}

// Decide maps the cache state to a guard decision.
func (g *RouteGuard) Decide() Decision {
	switch g.cache.State() {
	case StateUninitialized, StateVerifying:
		return DecisionPending
	case StateAuthenticated:
		return DecisionAllow
	default:
		return DecisionRedirect
	}
}

// LoginURL returns the redirect target for unauthenticated visitors.
func (g *RouteGuard) LoginURL() string {
	return g.loginURL
}

// Protect wraps an http.Handler serving a protected view. While verification
// is pending it renders a minimal loading page; unauthenticated visitors are
// redirected to the login entry point.
func (g *RouteGuard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.Decide() {
		case DecisionAllow:
			next.ServeHTTP(w, r)
		case DecisionPending:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("<html><body>Loading...</body></html>"))
		default:
			http.Redirect(w, r, g.loginURL, http.StatusFound)
		}
	})
}
