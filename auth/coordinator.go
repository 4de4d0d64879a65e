package auth

import (
	"context"
	"sync/atomic"

	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Navigator moves the client between routes.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// Coordinator bridges one client's Store to auth-change events and navigation.
type Coordinator struct {
	store  *Store
	broker *Broker
	nav    Navigator
	routes Routes
	log    zerolog.Logger
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(l zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = l
	}
}

func WithRoutes(r Routes) CoordinatorOption {
	return func(c *Coordinator) {
		c.routes = r
	}
}

func NewCoordinator(store *Store, broker *Broker, nav Navigator, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:  store,
		broker: broker,
		nav:    nav,
		routes: DefaultRoutes(),
		log:    log.Logger.With().Str("component", "auth_coordinator").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Coordinator) Store() *Store {
	return c.store
}

func (c *Coordinator) Broker() *Broker {
	return c.broker
}

func (c *Coordinator) Routes() Routes {
	return c.routes
}

// Consumer is one component's attachment to the coordinator. After Detach it no
// longer reacts to events or to late results of work it started.
type Consumer struct {
	c     *Coordinator
	sub   Subscription
	alive atomic.Bool
}

// Attach subscribes a new consumer to auth-change events and starts an initialization
// in the background.
func (c *Coordinator) Attach(ctx context.Context) *Consumer {
	cn := &Consumer{c: c}
	cn.alive.Store(true)
	cn.sub = c.broker.Subscribe(func(ev authbackend.Event) {
		cn.handle(ctx, ev)
	})

	go func() {
		st := c.store.Initialize(ctx)
		if !cn.alive.Load() {
			return
		}
		if st.Err != nil {
			c.log.Error().Err(st.Err).Msg("error initializing auth")
		}
	}()
	return cn
}

// Alive reports whether the consumer is still attached.
func (cn *Consumer) Alive() bool {
	return cn.alive.Load()
}

// Detach stops the consumer and releases its subscription. It is safe to call twice.
func (cn *Consumer) Detach() {
	if !cn.alive.CompareAndSwap(true, false) {
		return
	}
	if err := cn.c.broker.Unsubscribe(cn.sub); err != nil {
		cn.c.log.Warn().Err(err).Msg("detach")
	}
}

func (cn *Consumer) handle(ctx context.Context, ev authbackend.Event) {
	if !cn.alive.Load() {
		return
	}
	c := cn.c
	c.log.Debug().Str("event", string(ev.Type)).Bool("has_session", ev.Session != nil).Msg("auth state changed")

	switch ev.Type {
	case authbackend.EventSignedIn, authbackend.EventTokenRefreshed:
		st := c.store.reload(ctx, ev.Seq)
		if !cn.alive.Load() {
			return
		}
		if st.Err != nil {
			c.log.Error().Err(st.Err).Msg("error re-initializing auth")
			return
		}
		// Exempt routes such as the callback own their navigation.
		if st.IsAuthenticated() && c.routes.IsPublicOnly(c.nav.CurrentPath()) {
			c.nav.Navigate(c.routes.Home)
		}
	case authbackend.EventSignedOut:
		c.store.signedOut()
		if !cn.alive.Load() {
			return
		}
		if c.nav.CurrentPath() != c.routes.Auth {
			c.nav.Navigate(c.routes.Auth)
		}
	}
}

// RequireAuth sends an unauthenticated client to the auth route. It does nothing until
// the store is initialized and not loading. Returns true when it navigated.
func (c *Coordinator) RequireAuth(path string) bool {
	st := c.store.State()
	if !st.Initialized || st.IsLoading() || c.routes.IsExempt(path) {
		return false
	}
	if st.IsAuthenticated() {
		return false
	}
	c.nav.Navigate(c.routes.Auth)
	return true
}

// RequireNoAuth sends an authenticated client to the home route, under the same
// conditions as RequireAuth.
func (c *Coordinator) RequireNoAuth(path string) bool {
	st := c.store.State()
	if !st.Initialized || st.IsLoading() || c.routes.IsExempt(path) {
		return false
	}
	if !st.IsAuthenticated() {
		return false
	}
	c.nav.Navigate(c.routes.Home)
	return true
}
