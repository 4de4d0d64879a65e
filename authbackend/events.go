package authbackend

import (
	"sync"

	"github.com/jrsteele09/brandbolt/session"
)

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
)

// Event is an auth-change notification. Session is nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *session.Session
	// Seq orders events delivered through one broker; zero when not delivered by one.
	Seq uint64
}

// Emitter is a minimal EventSource that backends embed.
type Emitter struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(Event)
}

var _ EventSource = (*Emitter)(nil)

func (e *Emitter) OnAuthStateChange(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]func(Event))
	}
	id := e.next
	e.next++
	e.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Emit calls every registered listener synchronously, outside the lock.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Listeners returns the number of registered listeners.
func (e *Emitter) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
