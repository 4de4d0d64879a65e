package auth

import (
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/session"
)

// Status is the authentication phase of one client.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusError           Status = "error"
)

// State is a snapshot of the session store.
type State struct {
	Session *session.Session
	User    *session.User
	Status  Status
	// Initialized is set by the first completed initialization and never cleared.
	Initialized bool
	// ConfirmationPending is set after a sign-up that still needs email confirmation.
	ConfirmationPending bool
	Err                 error
}

// IsAuthenticated reports whether the snapshot holds a complete, authenticated identity.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Session != nil && s.User != nil
}

// IsLoading reports whether a fetch is in flight or nothing has been fetched yet.
func (s State) IsLoading() bool {
	return s.Status == StatusLoading || s.Status == StatusUninitialized
}

// StateView is the JSON shape of a State.
type StateView struct {
	Status              Status        `json:"status"`
	IsAuthenticated     bool          `json:"is_authenticated"`
	IsInitialized       bool          `json:"is_initialized"`
	IsLoading           bool          `json:"is_loading"`
	ConfirmationPending bool          `json:"confirmation_pending,omitempty"`
	User                *session.User `json:"user,omitempty"`
	Session             *sessionView  `json:"session,omitempty"`
	Error               string        `json:"error,omitempty"`
	ErrorCode           string        `json:"error_code,omitempty"`
}

type sessionView struct {
	ExpiresAt int64            `json:"expires_at"`
	Provider  session.Provider `json:"provider"`
}

// View converts the snapshot for API responses. Tokens are never included.
func (s State) View() StateView {
	v := StateView{
		Status:              s.Status,
		IsAuthenticated:     s.IsAuthenticated(),
		IsInitialized:       s.Initialized,
		IsLoading:           s.IsLoading(),
		ConfirmationPending: s.ConfirmationPending,
		User:                s.User,
	}
	if s.Session != nil {
		v.Session = &sessionView{ExpiresAt: s.Session.ExpiresAt.Unix(), Provider: s.Session.Provider}
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
		v.ErrorCode = errors.Code(s.Err)
	}
	return v
}
