package pendingpath

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/brandbolt/internal/errors"
)

type entry struct {
	path      string
	expiresAt time.Time
}

// InMemoryRepo is a thread-safe in-memory Repo whose entries expire after ttl.
type InMemoryRepo struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowTime func() time.Time
	paths   map[string]entry
}

func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		ttl:     ttl,
		nowTime: time.Now,
		paths:   make(map[string]entry),
	}
}

func (r *InMemoryRepo) Put(ctx context.Context, key, path string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowTime()
	for k, e := range r.paths {
		if now.After(e.expiresAt) {
			delete(r.paths, k)
		}
	}
	r.paths[key] = entry{path: path, expiresAt: now.Add(r.ttl)}
	return nil
}

func (r *InMemoryRepo) Take(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.paths[key]
	if !ok {
		return "", errors.ErrNotFound
	}
	delete(r.paths, key)
	if r.nowTime().After(e.expiresAt) {
		return "", errors.ErrNotFound
	}
	return e.path, nil
}
