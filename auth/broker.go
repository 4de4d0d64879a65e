package auth

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Subscription is the capability token returned by Broker.Subscribe.
type Subscription struct {
	ID uuid.UUID
}

// Broker shares one upstream auth-change subscription between any number of consumers.
// The upstream subscription is created when the first consumer subscribes and torn down
// when the last one unsubscribes. Events are delivered in order from a single goroutine
// that lives exactly as long as the upstream subscription.
type Broker struct {
	source  authbackend.EventSource
	log     zerolog.Logger
	metrics *metrics.Metrics

	seq atomic.Uint64

	mu       sync.Mutex
	handlers map[uuid.UUID]func(authbackend.Event)
	upstream func()
	queue    *eventQueue
}

// eventQueue buffers events for one upstream lifetime. It never drops an event and never
// blocks the emitter.
type eventQueue struct {
	mu     sync.Mutex
	events []authbackend.Event
	wake   chan struct{}
	done   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push stamps ev from seq and appends it; stamping under the lock keeps Seq in queue order.
func (q *eventQueue) push(ev authbackend.Event, seq *atomic.Uint64) {
	q.mu.Lock()
	ev.Seq = seq.Add(1)
	q.events = append(q.events, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []authbackend.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.events
	q.events = nil
	return evs
}

func (q *eventQueue) closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

type BrokerOption func(*Broker)

func WithBrokerLogger(l zerolog.Logger) BrokerOption {
	return func(b *Broker) {
		b.log = l
	}
}

func WithBrokerMetrics(m *metrics.Metrics) BrokerOption {
	return func(b *Broker) {
		b.metrics = m
	}
}

func NewBroker(source authbackend.EventSource, options ...BrokerOption) *Broker {
	b := &Broker{
		source:   source,
		log:      log.Logger.With().Str("component", "auth_broker").Logger(),
		handlers: make(map[uuid.UUID]func(authbackend.Event)),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Subscribe registers fn for auth-change events.
func (b *Broker) Subscribe(fn func(authbackend.Event)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := Subscription{ID: uuid.New()}
	b.handlers[sub.ID] = fn
	b.metrics.AddBrokerSubscribers(1)
	if b.upstream == nil {
		b.startLocked()
	}
	return sub
}

// Unsubscribe releases sub. Releasing an unknown or already released token returns
// errors.ErrUnknownSubscription and changes nothing.
func (b *Broker) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[sub.ID]; !ok {
		return errors.ErrUnknownSubscription
	}
	delete(b.handlers, sub.ID)
	b.metrics.AddBrokerSubscribers(-1)
	if len(b.handlers) == 0 {
		b.stopLocked()
	}
	return nil
}

// Count returns the number of live subscriptions.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Active reports whether the upstream subscription exists.
func (b *Broker) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upstream != nil
}

// Close drops every subscription and the upstream one.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.AddBrokerSubscribers(-len(b.handlers))
	b.handlers = make(map[uuid.UUID]func(authbackend.Event))
	b.stopLocked()
}

func (b *Broker) startLocked() {
	queue := newEventQueue()
	b.queue = queue

	b.upstream = b.source.OnAuthStateChange(func(ev authbackend.Event) {
		if queue.closed() {
			return
		}
		queue.push(ev, &b.seq)
	})
	b.metrics.IncrementUpstreamSubscriptions()
	b.log.Debug().Msg("upstream auth subscription created")

	go b.dispatch(queue)
}

func (b *Broker) stopLocked() {
	if b.upstream == nil {
		return
	}
	b.upstream()
	b.upstream = nil
	close(b.queue.done)
	b.queue = nil
	b.log.Debug().Msg("upstream auth subscription torn down")
}

func (b *Broker) dispatch(queue *eventQueue) {
	for {
		select {
		case <-queue.done:
			return
		case <-queue.wake:
			for _, ev := range queue.drain() {
				if queue.closed() {
					return
				}
				b.mu.Lock()
				fns := make([]func(authbackend.Event), 0, len(b.handlers))
				for _, fn := range b.handlers {
					fns = append(fns, fn)
				}
				b.mu.Unlock()

				for _, fn := range fns {
					fn(ev)
				}
			}
		}
	}
}
