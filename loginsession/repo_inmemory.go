package loginsession

import (
	"sync"
	"time"

	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/session"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	nowTime  func() time.Time
	sessions map[string]Entry // clientID -> cached session
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		nowTime:  time.Now,
		sessions: make(map[string]Entry),
	}
}

// Upsert creates or replaces the client's session
func (r *InMemoryRepo) Upsert(clientID string, s session.Session) error {
	if clientID == "" {
		return errors.New("clientID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[clientID] = Entry{
		ClientID:  clientID,
		Session:   s,
		UpdatedAt: r.nowTime(),
	}
	return nil
}

func (r *InMemoryRepo) Get(clientID string) (Entry, error) {
	if clientID == "" {
		return Entry{}, errors.New("clientID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[clientID]
	if !ok {
		return Entry{}, errors.ErrNotFound
	}
	return e, nil
}

// Delete removes the client's session. Deleting a missing session is not an error.
func (r *InMemoryRepo) Delete(clientID string) error {
	if clientID == "" {
		return errors.New("clientID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, clientID)
	return nil
}
