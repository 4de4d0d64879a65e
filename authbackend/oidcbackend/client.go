package oidcbackend

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/loginsession"
	"github.com/jrsteele09/brandbolt/session"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var _ authbackend.Client = (*Client)(nil)

// Client is one browser client's session against the issuer.
type Client struct {
	authbackend.Emitter

	p        *Provider
	clientID string
	cache    loginsession.Repo
	nowTime  func() time.Time
	log      zerolog.Logger
}

// GetSession returns the cached session. An expired session with a refresh token is
// refreshed and cached again; a rejected refresh drops the session.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	s, err := c.cached()
	if err != nil {
		return nil, err
	}
	if !s.Expired(c.nowTime()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		_ = c.cache.Delete(c.clientID)
		return nil, errors.ErrNoSession
	}

	ts := c.p.oauth.TokenSource(c.p.context(ctx), &oauth2.Token{
		RefreshToken: s.RefreshToken,
		Expiry:       c.nowTime().Add(-time.Minute),
	})
	tok, err := ts.Token()
	if err != nil {
		if rejected(err) {
			c.log.Info().Err(err).Msg("refresh token rejected, dropping session")
			_ = c.cache.Delete(c.clientID)
			return nil, errors.ErrNoSession
		}
		return nil, errors.Wrapf(errors.ErrNetwork, "[GetSession] refresh: %v", err)
	}

	refreshed, err := c.sessionFromToken(ctx, tok, s.Provider)
	if err != nil {
		return nil, err
	}
	if refreshed.UserID == "" {
		refreshed.UserID = s.UserID
	}
	if refreshed.Email == "" {
		refreshed.Email = s.Email
	}
	if err := c.store(refreshed); err != nil {
		return nil, err
	}
	c.Emit(authbackend.Event{Type: authbackend.EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// GetUser asks the issuer's userinfo endpoint who owns the cached access token.
func (c *Client) GetUser(ctx context.Context) (*session.User, error) {
	s, err := c.cached()
	if err != nil {
		return nil, err
	}

	info, err := c.p.oidc.UserInfo(c.p.context(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: s.AccessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetwork, "[GetUser] userinfo: %v", err)
	}

	var claims struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	metadata := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[GetUser] claims: %v", err)
	}
	_ = info.Claims(&metadata)

	email := info.Email
	if email == "" {
		email = s.Email
	}
	return &session.User{
		ID:       info.Subject,
		Email:    email,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Provider: s.Provider,
		Metadata: metadata,
	}, nil
}

// SignInWithPassword uses the resource owner password grant.
func (c *Client) SignInWithPassword(ctx context.Context, creds authbackend.Credentials) (*authbackend.AuthResult, error) {
	tok, err := c.p.oauth.PasswordCredentialsToken(c.p.context(ctx), creds.Email, creds.Password)
	if err != nil {
		if rejected(err) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, errors.Wrapf(errors.ErrNetwork, "[SignInWithPassword] %v", err)
	}
	s, err := c.sessionFromToken(ctx, tok, session.ProviderEmail)
	if err != nil {
		return nil, err
	}
	if s.Email == "" {
		s.Email = creds.Email
	}
	return c.signedIn(ctx, s)
}

type signUpResponse struct {
	tokenResponse
	User *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignUp registers the account. Without tokens in the response the account is waiting
// for email confirmation and only the user is returned.
func (c *Client) SignUp(ctx context.Context, creds authbackend.Credentials) (*authbackend.AuthResult, error) {
	var resp signUpResponse
	if err := c.p.doJSON(ctx, http.MethodPost, "/signup", "", creds, &resp); err != nil {
		return nil, errors.Wrapf(err, "[SignUp]")
	}

	if resp.AccessToken == "" {
		if resp.User == nil {
			return nil, errors.ErrIncompleteSession
		}
		return &authbackend.AuthResult{User: &session.User{
			ID:       resp.User.ID,
			Email:    resp.User.Email,
			Provider: session.ProviderEmail,
		}}, nil
	}

	s, err := session.FromTokens(resp.AccessToken, resp.RefreshToken, "", resp.expiry(c.nowTime()), session.ProviderEmail)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrIncompleteSession, "[SignUp] %v", err)
	}
	if resp.User != nil && s.UserID == "" {
		s.UserID = resp.User.ID
	}
	if s.Email == "" {
		s.Email = creds.Email
	}
	return c.signedIn(ctx, s)
}

// SignOut revokes the session remotely when there is one. The cached session is dropped
// and signed-out is emitted whatever the remote call returns.
func (c *Client) SignOut(ctx context.Context) error {
	var remoteErr error
	if s, err := c.cached(); err == nil {
		remoteErr = c.p.doJSON(ctx, http.MethodPost, "/logout", s.AccessToken, nil, nil)
	}
	if err := c.cache.Delete(c.clientID); err != nil {
		c.log.Warn().Err(err).Msg("failed to delete cached session")
	}
	c.Emit(authbackend.Event{Type: authbackend.EventSignedOut})
	if remoteErr != nil {
		return errors.Wrapf(remoteErr, "[SignOut]")
	}
	return nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	if err := c.p.doJSON(ctx, http.MethodPost, "/recover", "", body, nil); err != nil {
		return errors.Wrapf(err, "[ResetPasswordForEmail]")
	}
	return nil
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	s, err := c.cached()
	if err != nil {
		return err
	}
	body := map[string]string{"password": password}
	if err := c.p.doJSON(ctx, http.MethodPut, "/user", s.AccessToken, body, nil); err != nil {
		return errors.Wrapf(err, "[UpdatePassword]")
	}
	return nil
}

// AuthCodeURL builds the authorization URL with an S256 PKCE challenge for verifier.
func (c *Client) AuthCodeURL(provider session.Provider, state, verifier string) (string, error) {
	if !provider.IsOAuth() {
		return "", errors.Wrapf(errors.ErrProviderNotSupported, "%q", provider)
	}
	return c.p.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("provider", provider.String()),
	), nil
}

// ExchangeCodeForSession redeems an authorization code. An ID token in the response is
// verified before the session is cached.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*session.Session, error) {
	tok, err := c.p.oauth.Exchange(c.p.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		if rejected(err) {
			return nil, errors.Wrapf(errors.ErrProviderRejected, "[ExchangeCodeForSession] %v", err)
		}
		return nil, errors.Wrapf(errors.ErrNetwork, "[ExchangeCodeForSession] %v", err)
	}
	s, err := c.sessionFromToken(ctx, tok, session.ProviderLinkedIn)
	if err != nil {
		return nil, err
	}
	if _, err := c.signedIn(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) ClearSession(ctx context.Context) error {
	return c.cache.Delete(c.clientID)
}

func (c *Client) cached() (*session.Session, error) {
	e, err := c.cache.Get(c.clientID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrNoSession
		}
		return nil, errors.Wrapf(errors.ErrInternal, "session cache: %v", err)
	}
	s := e.Session
	return &s, nil
}

func (c *Client) store(s *session.Session) error {
	if err := c.cache.Upsert(c.clientID, *s); err != nil {
		return errors.Wrapf(errors.ErrInternal, "session cache: %v", err)
	}
	return nil
}

func (c *Client) signedIn(ctx context.Context, s *session.Session) (*authbackend.AuthResult, error) {
	if err := c.store(s); err != nil {
		return nil, err
	}
	user, err := c.GetUser(ctx)
	if err != nil {
		_ = c.cache.Delete(c.clientID)
		return nil, err
	}
	if s.UserID == "" {
		s.UserID = user.ID
		if err := c.store(s); err != nil {
			return nil, err
		}
	}
	c.Emit(authbackend.Event{Type: authbackend.EventSignedIn, Session: s})
	return &authbackend.AuthResult{Session: s, User: user}, nil
}

// sessionFromToken builds a session from a token response, taking identity from a
// verified ID token when one is present.
func (c *Client) sessionFromToken(ctx context.Context, tok *oauth2.Token, fallback session.Provider) (*session.Session, error) {
	rawID, _ := tok.Extra("id_token").(string)
	s, err := session.FromTokens(tok.AccessToken, tok.RefreshToken, rawID, tok.Expiry, fallback)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrIncompleteSession, "%v", err)
	}
	if rawID == "" {
		return s, nil
	}

	idToken, err := c.p.verifier.Verify(c.p.context(ctx), rawID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderRejected, "id token verification failed: %v", err)
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderRejected, "id token claims: %v", err)
	}
	s.UserID = idToken.Subject
	if claims.Email != "" {
		s.Email = claims.Email
	}
	return s, nil
}

// rejected reports whether the token endpoint answered with an OAuth error rather than
// failing to answer at all.
func rejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	return re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
}
