package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const initializeKey = "initialize"

// Store is the single source of truth for one client's auth state.
// Public methods never return errors; failures are recorded in State.Err.
type Store struct {
	backend authbackend.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
	nowTime func() time.Time

	inflight singleflight.Group

	mu    sync.Mutex
	state State
	// version is bumped by every action that replaces identity so that an initialization
	// started before it cannot overwrite the newer result.
	version uint64
	// eventSeq is the last auth event that invalidated the in-flight initialization.
	eventSeq uint64
	// settledSeq is the last auth event whose reload has settled.
	settledSeq uint64
}

// loadResult is what one initialization flight hands its callers. A superseded flight
// carries no state; its callers move on to the newer flight.
type loadResult struct {
	state      State
	superseded bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithStoreLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func NewStore(backend authbackend.Client, options ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		log:     log.Logger.With().Str("component", "auth_store").Logger(),
		nowTime: time.Now,
		state:   State{Status: StatusUninitialized},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// State returns a snapshot. An authenticated state whose session has expired is
// downgraded to unauthenticated before it is returned.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.state
}

func (s *Store) expireLocked() {
	if s.state.Status != StatusAuthenticated || !s.state.Session.Expired(s.nowTime()) {
		return
	}
	s.version++
	s.state.Session = nil
	s.state.User = nil
	s.state.Status = StatusUnauthenticated
}

// Initialize fetches the cached session and then the user. Calls made while an
// initialization is in flight wait for it and return its result. When that flight is
// superseded by an auth event or action, callers wait for the newer flight instead. If
// ctx ends first the current snapshot is returned and the shared fetch carries on for the
// other callers.
func (s *Store) Initialize(ctx context.Context) State {
	fetchCtx := context.WithoutCancel(ctx)
	for {
		ch := s.inflight.DoChan(initializeKey, func() (interface{}, error) {
			return s.load(fetchCtx), nil
		})

		select {
		case res := <-ch:
			if res.Shared {
				s.metrics.IncrementSharedInitializations()
			}
			lr := res.Val.(loadResult)
			if !lr.superseded {
				return lr.state
			}
		case <-ctx.Done():
			return s.State()
		}
	}
}

// reload re-runs initialization for auth event seq. The first caller for a new event
// abandons any initialization that started before the event, later callers for the same
// event join the fresh one, and callers arriving after it settled get its result.
func (s *Store) reload(ctx context.Context, seq uint64) State {
	s.mu.Lock()
	if seq != 0 && seq <= s.settledSeq {
		s.expireLocked()
		st := s.state
		s.mu.Unlock()
		return st
	}
	if seq == 0 || seq > s.eventSeq {
		if seq > s.eventSeq {
			s.eventSeq = seq
		}
		s.version++
		s.inflight.Forget(initializeKey)
	}
	s.mu.Unlock()
	return s.Initialize(ctx)
}

func (s *Store) load(ctx context.Context) loadResult {
	start := time.Now()
	defer s.metrics.ObserveInitialize(start)

	s.mu.Lock()
	version, seq := s.version, s.eventSeq
	if !s.state.Initialized {
		s.state.Status = StatusLoading
	}
	s.state.Err = nil
	s.mu.Unlock()

	s.metrics.IncrementSessionFetches()
	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		return s.settle(version, seq, nil, err)
	}
	if sess.Expired(s.nowTime()) {
		return s.settle(version, seq, nil, errors.ErrNoSession)
	}

	user, err := s.backend.GetUser(ctx)
	if err != nil {
		return s.settle(version, seq, nil, err)
	}
	return s.settle(version, seq, &authbackend.AuthResult{Session: sess, User: user}, nil)
}

func (s *Store) settle(version, seq uint64, res *authbackend.AuthResult, err error) loadResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != version {
		s.log.Debug().Msg("discarding superseded initialization result")
		return loadResult{superseded: true}
	}

	if seq > s.settledSeq {
		s.settledSeq = seq
	}
	s.state.Initialized = true
	switch {
	case err == nil && res != nil && res.Session != nil && res.User != nil:
		s.state.Session = res.Session
		s.state.User = res.User
		s.state.Status = StatusAuthenticated
		s.state.ConfirmationPending = false
		s.state.Err = nil
	case err == nil || errors.Is(err, errors.ErrNoSession):
		s.state.Session = nil
		s.state.User = nil
		s.state.Status = StatusUnauthenticated
		s.state.Err = nil
	default:
		s.log.Warn().Err(err).Msg("session initialization failed")
		s.state.Session = nil
		s.state.User = nil
		s.state.Status = StatusError
		s.state.Err = err
	}
	return loadResult{state: s.state}
}

// SignIn authenticates with email and password.
func (s *Store) SignIn(ctx context.Context, creds authbackend.Credentials) State {
	if err := creds.Validate(); err != nil {
		return s.SetError(err)
	}
	s.begin()
	res, err := s.backend.SignInWithPassword(ctx, creds)
	if err == nil && (res == nil || res.Session == nil || res.User == nil) {
		err = errors.ErrIncompleteSession
	}
	return s.finishAuth(res, err, "sign in")
}

// SignUp registers an account. A backend that requires email confirmation returns no
// session; the state is then unauthenticated with ConfirmationPending set.
func (s *Store) SignUp(ctx context.Context, creds authbackend.Credentials) State {
	if err := creds.Validate(); err != nil {
		return s.SetError(err)
	}
	s.begin()
	res, err := s.backend.SignUp(ctx, creds)
	if err == nil && res != nil && res.Session == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.version++
		s.state.Session = nil
		s.state.User = nil
		s.state.Status = StatusUnauthenticated
		s.state.Initialized = true
		s.state.ConfirmationPending = true
		s.state.Err = nil
		return s.state
	}
	if err == nil && (res == nil || res.User == nil) {
		err = errors.ErrIncompleteSession
	}
	return s.finishAuth(res, err, "sign up")
}

// begin drops identity along with the status so a loading state never carries a session.
func (s *Store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.state.Session = nil
	s.state.User = nil
	s.state.Status = StatusLoading
	s.state.Err = nil
}

func (s *Store) finishAuth(res *authbackend.AuthResult, err error, action string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.state.Initialized = true
	s.state.ConfirmationPending = false
	if err != nil {
		s.log.Info().Err(err).Str("action", action).Msg("authentication failed")
		s.state.Session = nil
		s.state.User = nil
		s.state.Status = StatusError
		s.state.Err = err
		return s.state
	}
	s.state.Session = res.Session
	s.state.User = res.User
	s.state.Status = StatusAuthenticated
	s.state.Err = nil
	return s.state
}

// SignOut always leaves the store signed out, even when the backend call fails.
// A backend failure is kept in State.Err.
func (s *Store) SignOut(ctx context.Context) State {
	err := s.backend.SignOut(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("remote sign out failed, clearing local session anyway")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(StatusUnauthenticated, err)
	return s.state
}

// GetCurrentUser re-validates the session. On a store that was never initialized this
// is the first initialization.
func (s *Store) GetCurrentUser(ctx context.Context) State {
	s.log.Debug().Bool("initialized", s.State().Initialized).Msg("revalidating session")
	return s.Initialize(ctx)
}

// ResetPassword asks the backend to send a password recovery email.
func (s *Store) ResetPassword(ctx context.Context, email string) State {
	if err := authbackend.ValidateEmail(email); err != nil {
		return s.SetError(err)
	}
	return s.SetError(s.backend.ResetPasswordForEmail(ctx, email))
}

// UpdatePassword changes the signed in user's password.
func (s *Store) UpdatePassword(ctx context.Context, password string) State {
	if err := authbackend.ValidatePassword(password); err != nil {
		return s.SetError(err)
	}
	return s.SetError(s.backend.UpdatePassword(ctx, password))
}

// SetError records err without touching identity. A nil err clears the error.
func (s *Store) SetError(err error) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Err = err
	return s.state
}

func (s *Store) ClearError() State {
	return s.SetError(nil)
}

// Discard drops all credential state, local and cached, and records cause.
// Used when a sign-in attempt fails half way.
func (s *Store) Discard(ctx context.Context, cause error) State {
	if err := s.backend.ClearSession(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear cached session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(StatusError, cause)
	return s.state
}

// signedOut applies a sign-out that happened outside this store.
func (s *Store) signedOut() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(StatusUnauthenticated, nil)
	return s.state
}

func (s *Store) clearLocked(status Status, err error) {
	s.version++
	s.state.Session = nil
	s.state.User = nil
	s.state.Status = status
	s.state.Initialized = true
	s.state.ConfirmationPending = false
	s.state.Err = err
}
