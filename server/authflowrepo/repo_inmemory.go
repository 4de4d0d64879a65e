package authflowrepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/brandbolt/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Entries older than maxAge are treated as missing and swept on write.
type InMemoryRepo struct {
	mu      sync.RWMutex
	maxAge  time.Duration
	nowTime func() time.Time
	states  map[string]*AuthFlowState
}

func NewInMemoryRepo(maxAge time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		maxAge:  maxAge,
		nowTime: time.Now,
		states:  make(map[string]*AuthFlowState),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowTime()
	for k, s := range r.states {
		if r.expired(s, now) {
			delete(r.states, k)
		}
	}

	// Create a copy to prevent external modifications
	cp := *authState
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	r.states[state] = &cp
	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[state]
	if !exists || r.expired(authState, r.nowTime()) {
		return nil, errors.Wrapf(errors.ErrInvalidState, "state not found")
	}

	cp := *authState
	return &cp, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

func (r *InMemoryRepo) expired(s *AuthFlowState, now time.Time) bool {
	return r.maxAge > 0 && now.Sub(s.CreatedAt) > r.maxAge
}
