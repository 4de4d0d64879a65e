package fakebackend

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/session"
)

var _ authbackend.Client = (*FakeBackend)(nil)

// FakeBackend is an in-memory authbackend.Client for tests.
// Zero delays and nil errors give a backend that answers immediately.
type FakeBackend struct {
	authbackend.Emitter

	lock    sync.Mutex
	session *session.Session
	user    *session.User
	users   map[string]string // email -> password

	// Delay is applied to every network-shaped call.
	Delay time.Duration

	SessionErr  error
	UserErr     error
	SignOutErr  error
	ExchangeErr error
	// ExchangeDelay is applied to ExchangeCodeForSession on top of Delay.
	ExchangeDelay time.Duration
	// ConfirmEmail makes SignUp return a user without a session.
	ConfirmEmail bool

	SessionCalls  atomic.Int32
	UserCalls     atomic.Int32
	SignInCalls   atomic.Int32
	SignOutCalls  atomic.Int32
	ExchangeCalls atomic.Int32
	ResetCalls    atomic.Int32
	UpdateCalls   atomic.Int32
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{users: make(map[string]string)}
}

// TestSession returns a session for userID expiring in ttl.
func TestSession(userID string, ttl time.Duration) *session.Session {
	return &session.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(ttl),
		UserID:       userID,
		Email:        userID + "@example.com",
		Provider:     session.ProviderEmail,
	}
}

func userFor(s *session.Session) *session.User {
	return &session.User{ID: s.UserID, Email: s.Email, Provider: s.Provider}
}

// SetSession seeds the cached session (and matching user) without emitting events.
func (f *FakeBackend) SetSession(s *session.Session) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.session = s
	if s != nil {
		f.user = userFor(s)
	} else {
		f.user = nil
	}
}

// AddUser registers an account for SignInWithPassword.
func (f *FakeBackend) AddUser(email, password string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.users[email] = password
}

// HasSession reports whether a session is cached.
func (f *FakeBackend) HasSession() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.session != nil
}

func (f *FakeBackend) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeBackend) GetSession(ctx context.Context) (*session.Session, error) {
	f.SessionCalls.Add(1)
	if err := f.wait(ctx, f.Delay); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	if f.session == nil {
		return nil, errors.ErrNoSession
	}
	s := *f.session
	return &s, nil
}

func (f *FakeBackend) GetUser(ctx context.Context) (*session.User, error) {
	f.UserCalls.Add(1)
	if err := f.wait(ctx, f.Delay); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.UserErr != nil {
		return nil, f.UserErr
	}
	if f.user == nil {
		return nil, errors.ErrNoSession
	}
	u := *f.user
	return &u, nil
}

func (f *FakeBackend) SignInWithPassword(ctx context.Context, creds authbackend.Credentials) (*authbackend.AuthResult, error) {
	f.SignInCalls.Add(1)
	if err := f.wait(ctx, f.Delay); err != nil {
		return nil, err
	}
	f.lock.Lock()
	pw, ok := f.users[creds.Email]
	if !ok || pw != creds.Password {
		f.lock.Unlock()
		return nil, errors.ErrInvalidCredentials
	}
	s := TestSession(creds.Email, time.Hour)
	s.Email = creds.Email
	f.session = s
	f.user = userFor(s)
	res := &authbackend.AuthResult{Session: s, User: f.user}
	f.lock.Unlock()

	f.Emit(authbackend.Event{Type: authbackend.EventSignedIn, Session: s})
	return res, nil
}

func (f *FakeBackend) SignUp(ctx context.Context, creds authbackend.Credentials) (*authbackend.AuthResult, error) {
	if err := f.wait(ctx, f.Delay); err != nil {
		return nil, err
	}
	f.lock.Lock()
	if _, exists := f.users[creds.Email]; exists {
		f.lock.Unlock()
		return nil, fmt.Errorf("user already registered")
	}
	f.users[creds.Email] = creds.Password
	s := TestSession(creds.Email, time.Hour)
	s.Email = creds.Email
	if f.ConfirmEmail {
		f.lock.Unlock()
		return &authbackend.AuthResult{User: userFor(s)}, nil
	}
	f.session = s
	f.user = userFor(s)
	res := &authbackend.AuthResult{Session: s, User: f.user}
	f.lock.Unlock()

	f.Emit(authbackend.Event{Type: authbackend.EventSignedIn, Session: s})
	return res, nil
}

func (f *FakeBackend) SignOut(ctx context.Context) error {
	f.SignOutCalls.Add(1)
	err := f.wait(ctx, f.Delay)
	f.lock.Lock()
	f.session = nil
	f.user = nil
	f.lock.Unlock()
	f.Emit(authbackend.Event{Type: authbackend.EventSignedOut})
	if err != nil {
		return err
	}
	return f.SignOutErr
}

func (f *FakeBackend) ResetPasswordForEmail(ctx context.Context, email string) error {
	f.ResetCalls.Add(1)
	return f.wait(ctx, f.Delay)
}

func (f *FakeBackend) UpdatePassword(ctx context.Context, password string) error {
	f.UpdateCalls.Add(1)
	if err := f.wait(ctx, f.Delay); err != nil {
		return err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.session == nil {
		return errors.ErrNoSession
	}
	f.users[f.session.Email] = password
	return nil
}

func (f *FakeBackend) AuthCodeURL(provider session.Provider, state, verifier string) (string, error) {
	if !provider.IsOAuth() {
		return "", errors.ErrProviderNotSupported
	}
	q := url.Values{}
	q.Set("provider", string(provider))
	q.Set("state", state)
	return "https://idp.example/authorize?" + q.Encode(), nil
}

func (f *FakeBackend) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*session.Session, error) {
	f.ExchangeCalls.Add(1)
	if err := f.wait(ctx, f.Delay+f.ExchangeDelay); err != nil {
		return nil, err
	}
	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	s := TestSession("oauth-"+code, time.Hour)
	s.Provider = session.ProviderLinkedIn
	f.SetSession(s)
	f.Emit(authbackend.Event{Type: authbackend.EventSignedIn, Session: s})
	return s, nil
}

func (f *FakeBackend) ClearSession(ctx context.Context) error {
	f.SetSession(nil)
	return nil
}

// EmitTokenRefreshed simulates the backend refreshing the cached session.
func (f *FakeBackend) EmitTokenRefreshed() {
	f.lock.Lock()
	s := f.session
	f.lock.Unlock()
	f.Emit(authbackend.Event{Type: authbackend.EventTokenRefreshed, Session: s})
}
