package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BackendFactory returns the auth backend view for one browser client.
type BackendFactory func(clientID string) authbackend.Client

// Client is everything the service keeps for one browser.
type Client struct {
	ID          string
	Backend     authbackend.Client
	Coordinator *auth.Coordinator
	Callback    *auth.CallbackFlow

	nav      *navigator
	consumer *auth.Consumer
	lastSeen atomic.Int64
}

func (c *Client) Store() *auth.Store {
	return c.Coordinator.Store()
}

func (c *Client) touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

func (c *Client) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastSeen.Load()))
}

func (c *Client) close() {
	c.consumer.Detach()
	c.Coordinator.Broker().Close()
}

// navigator records where the coordinator wants the browser to go. The directive is
// handed to the browser on its next state poll.
type navigator struct {
	mu        sync.Mutex
	current   string
	directive string
}

func (n *navigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *navigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
	n.directive = path
}

func (n *navigator) visit(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
}

func (n *navigator) takeDirective() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	d := n.directive
	n.directive = ""
	return d
}

// ClientRegistry creates clients on first sight and evicts idle ones.
type ClientRegistry struct {
	backends        BackendFactory
	pending         auth.PendingPathTaker
	routes          auth.Routes
	maxIdle         time.Duration
	callbackTimeout time.Duration
	metrics         *metrics.Metrics
	log             zerolog.Logger
	nowTime         func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
}

type RegistryOption func(*ClientRegistry)

func WithRoutes(r auth.Routes) RegistryOption {
	return func(cr *ClientRegistry) {
		cr.routes = r
	}
}

// WithMaxIdle sets how long a client may go unseen before it is evicted.
func WithMaxIdle(d time.Duration) RegistryOption {
	return func(cr *ClientRegistry) {
		cr.maxIdle = d
	}
}

func WithCallbackTimeout(d time.Duration) RegistryOption {
	return func(cr *ClientRegistry) {
		cr.callbackTimeout = d
	}
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(cr *ClientRegistry) {
		cr.metrics = m
	}
}

func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(cr *ClientRegistry) {
		cr.log = l
	}
}

// WithRegistryNowTime sets the now time function (primarily for testing)
func WithRegistryNowTime(nowFunc func() time.Time) RegistryOption {
	return func(cr *ClientRegistry) {
		cr.nowTime = nowFunc
	}
}

func NewClientRegistry(backends BackendFactory, pending auth.PendingPathTaker, options ...RegistryOption) *ClientRegistry {
	cr := &ClientRegistry{
		backends:        backends,
		pending:         pending,
		routes:          auth.DefaultRoutes(),
		maxIdle:         30 * time.Minute,
		callbackTimeout: auth.DefaultCallbackTimeout,
		log:             log.Logger.With().Str("component", "client_registry").Logger(),
		nowTime:         time.Now,
		clients:         make(map[string]*Client),
	}
	for _, opt := range options {
		opt(cr)
	}
	return cr
}

// Get returns the client for id, creating and attaching it on first use.
func (cr *ClientRegistry) Get(id string) *Client {
	now := cr.nowTime()

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if c, ok := cr.clients[id]; ok {
		c.touch(now)
		return c
	}

	l := cr.log.With().Str("client_id", id).Logger()
	backend := cr.backends(id)
	store := auth.NewStore(backend,
		auth.WithStoreLogger(l.With().Str("component", "auth_store").Logger()),
		auth.WithStoreMetrics(cr.metrics))
	broker := auth.NewBroker(backend,
		auth.WithBrokerLogger(l.With().Str("component", "auth_broker").Logger()),
		auth.WithBrokerMetrics(cr.metrics))
	nav := &navigator{}
	coordinator := auth.NewCoordinator(store, broker, nav,
		auth.WithRoutes(cr.routes),
		auth.WithCoordinatorLogger(l.With().Str("component", "auth_coordinator").Logger()))

	c := &Client{
		ID:          id,
		Backend:     backend,
		Coordinator: coordinator,
		Callback: auth.NewCallbackFlow(coordinator, backend, cr.pending,
			auth.WithCallbackTimeout(cr.callbackTimeout),
			auth.WithCallbackMetrics(cr.metrics),
			auth.WithCallbackLogger(l.With().Str("component", "auth_callback").Logger())),
		nav: nav,
	}
	c.touch(now)
	c.consumer = coordinator.Attach(context.Background())

	cr.clients[id] = c
	cr.metrics.AddActiveClients(1)
	l.Debug().Msg("client attached")
	return c
}

func (cr *ClientRegistry) Len() int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return len(cr.clients)
}

// Evict closes clients idle for longer than the max idle time and returns how many went.
// Their cached sessions stay in the backend cache, so a returning browser picks its
// session back up.
func (cr *ClientRegistry) Evict() int {
	now := cr.nowTime()

	cr.mu.Lock()
	var idle []*Client
	for id, c := range cr.clients {
		if c.idleSince(now) > cr.maxIdle {
			idle = append(idle, c)
			delete(cr.clients, id)
		}
	}
	cr.mu.Unlock()

	for _, c := range idle {
		c.close()
		cr.metrics.AddActiveClients(-1)
		cr.log.Debug().Str("client_id", c.ID).Msg("idle client evicted")
	}
	return len(idle)
}

// Run evicts idle clients until ctx is done.
func (cr *ClientRegistry) Run(ctx context.Context) {
	interval := cr.maxIdle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cr.Evict(); n > 0 {
				cr.log.Info().Int("evicted", n).Int("active", cr.Len()).Msg("evicted idle clients")
			}
		}
	}
}

// Close detaches every client.
func (cr *ClientRegistry) Close() {
	cr.mu.Lock()
	clients := cr.clients
	cr.clients = make(map[string]*Client)
	cr.mu.Unlock()

	for _, c := range clients {
		c.close()
		cr.metrics.AddActiveClients(-1)
	}
}
