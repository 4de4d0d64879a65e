// Package loginsession caches each client's session between requests, the way a browser
// keeps the backend session in local storage.
package loginsession

import (
	"time"

	"github.com/jrsteele09/brandbolt/session"
)

// Entry is a cached session and when it was last written.
type Entry struct {
	ClientID  string
	Session   session.Session
	UpdatedAt time.Time
}

type Repo interface {
	Upsert(clientID string, s session.Session) error
	// Get returns errors.ErrNotFound when the client has no cached session.
	Get(clientID string) (Entry, error)
	Delete(clientID string) error
}
