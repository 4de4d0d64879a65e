// Package authbackend describes the identity backend that owns sessions. The service treats
// it as an opaque collaborator: everything about tokens and users goes through Client.
package authbackend

import (
	"context"

	"github.com/jrsteele09/brandbolt/session"
)

// Credentials are an email and password pair.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AuthResult is what a sign-in or sign-up returns. Session is nil when the backend
// created an account that still needs email confirmation.
type AuthResult struct {
	Session *session.Session
	User    *session.User
}

// Client is one browser client's view of the auth backend.
type Client interface {
	// GetSession returns the cached session, refreshing it when expired.
	// errors.ErrNoSession means there is none.
	GetSession(ctx context.Context) (*session.Session, error)
	// GetUser fetches the full identity for the cached session.
	GetUser(ctx context.Context) (*session.User, error)

	SignInWithPassword(ctx context.Context, creds Credentials) (*AuthResult, error)
	SignUp(ctx context.Context, creds Credentials) (*AuthResult, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, password string) error

	// AuthCodeURL builds the provider redirect for an OAuth sign-in.
	AuthCodeURL(provider session.Provider, state, verifier string) (string, error)
	// ExchangeCodeForSession trades an authorization code for a session and caches it.
	ExchangeCodeForSession(ctx context.Context, code, verifier string) (*session.Session, error)
	// ClearSession drops the cached session without calling the backend or emitting events.
	ClearSession(ctx context.Context) error

	EventSource
}

// EventSource is the backend's auth-change notification stream.
type EventSource interface {
	// OnAuthStateChange registers fn and returns a function that removes it.
	OnAuthStateChange(fn func(Event)) (unsubscribe func())
}
