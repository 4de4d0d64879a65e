package auth_test

import (
	"testing"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/session"
	"github.com/stretchr/testify/assert"
)

func TestGuardResolve(t *testing.T) {
	guard := auth.NewGuard(auth.DefaultRoutes())

	signedIn := auth.State{
		Status:      auth.StatusAuthenticated,
		Initialized: true,
		Session:     &session.Session{UserID: testUserID},
		User:        &session.User{ID: testUserID},
	}
	signedOut := auth.State{Status: auth.StatusUnauthenticated, Initialized: true}
	failed := auth.State{Status: auth.StatusError, Initialized: true}
	loading := auth.State{Status: auth.StatusLoading, Initialized: true}
	fresh := auth.State{Status: auth.StatusUninitialized}

	tests := []struct {
		name   string
		state  auth.State
		path   string
		action auth.Action
		to     string
	}{
		{"fresh client waits", fresh, "/calendar", auth.ActionWait, ""},
		{"loading client waits", loading, "/auth", auth.ActionWait, ""},
		{"signed out on protected route", signedOut, "/calendar", auth.ActionRedirect, "/auth"},
		{"signed out on home", signedOut, "/", auth.ActionRedirect, "/auth"},
		{"errored on protected route", failed, "/settings", auth.ActionRedirect, "/auth"},
		{"signed out on auth page", signedOut, "/auth", auth.ActionRender, ""},
		{"signed in on protected route", signedIn, "/analytics", auth.ActionRender, ""},
		{"signed in on auth page", signedIn, "/auth", auth.ActionRedirect, "/"},
		{"callback renders while loading", loading, "/auth/callback", auth.ActionRender, ""},
		{"callback renders when signed in", signedIn, "/auth/callback", auth.ActionRender, ""},
		{"reset password renders when signed out", signedOut, "/auth/reset-password", auth.ActionRender, ""},
		{"oauth start is exempt", fresh, "/auth/oauth/linkedin_oidc", auth.ActionRender, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Resolve(tt.state, tt.path)
			assert.Equal(t, tt.action, d.Action, d.Action.String())
			assert.Equal(t, tt.to, d.To)
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	routes := auth.DefaultRoutes()

	tests := map[string]string{
		"":                          "/",
		"/calendar":                 "/calendar",
		"/content?tab=drafts":       "/content?tab=drafts",
		"//evil.example/phish":      "/",
		"/\\evil.example":           "/",
		"https://evil.example/":     "/",
		"calendar":                  "/",
		"/auth":                     "/",
		"/auth/callback?code=1":     "/",
		"/auth/oauth/linkedin_oidc": "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, routes.SafeRedirect(in), "SafeRedirect(%q)", in)
	}
}
