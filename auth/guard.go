package auth

import (
	"net/url"
	"strings"
)

// Routes names the route trees the guard distinguishes.
type Routes struct {
	Home     string
	Auth     string
	Callback string
	// PublicOnly routes are for signed out users; signed in users are sent Home.
	PublicOnly []string
	// Exempt routes are reachable in every state.
	Exempt []string
}

func DefaultRoutes() Routes {
	return Routes{
		Home:       "/",
		Auth:       "/auth",
		Callback:   "/auth/callback",
		PublicOnly: []string{"/auth"},
		Exempt:     []string{"/auth/callback", "/auth/reset-password", "/auth/oauth/"},
	}
}

// IsExempt reports whether path bypasses both guards. Entries ending in "/" match
// as prefixes.
func (r Routes) IsExempt(path string) bool {
	return matchesAny(path, r.Exempt)
}

// IsPublicOnly reports whether path is only for signed out users.
func (r Routes) IsPublicOnly(path string) bool {
	return !r.IsExempt(path) && matchesAny(path, r.PublicOnly)
}

// IsProtected reports whether path requires a signed in user.
func (r Routes) IsProtected(path string) bool {
	return !r.IsExempt(path) && !r.IsPublicOnly(path)
}

func matchesAny(path string, routes []string) bool {
	for _, route := range routes {
		if strings.HasSuffix(route, "/") && strings.HasPrefix(path, route) {
			return true
		}
		if path == route || path == route+"/" {
			return true
		}
	}
	return false
}

// Action is what the guard decided for a route.
type Action int

const (
	ActionRender Action = iota
	ActionWait
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionWait:
		return "wait"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Guard.Resolve. To is set for ActionRedirect.
type Decision struct {
	Action Action
	To     string
}

// Guard maps an auth state onto the route tree that may be rendered.
type Guard struct {
	routes Routes
}

func NewGuard(routes Routes) Guard {
	return Guard{routes: routes}
}

// Resolve decides what to do with a request for path given st.
func (g Guard) Resolve(st State, path string) Decision {
	if g.routes.IsExempt(path) {
		return Decision{Action: ActionRender}
	}
	if !st.Initialized || st.IsLoading() {
		return Decision{Action: ActionWait}
	}
	authenticated := st.IsAuthenticated()
	switch {
	case !authenticated && g.routes.IsProtected(path):
		return Decision{Action: ActionRedirect, To: g.routes.Auth}
	case authenticated && g.routes.IsPublicOnly(path):
		return Decision{Action: ActionRedirect, To: g.routes.Home}
	default:
		return Decision{Action: ActionRender}
	}
}

// SafeRedirect returns path when it is a local route a signed in user may land on,
// and Home otherwise.
func (r Routes) SafeRedirect(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return r.Home
	}
	u, err := url.Parse(path)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return r.Home
	}
	if r.IsExempt(u.Path) || r.IsPublicOnly(u.Path) {
		return r.Home
	}
	return path
}
