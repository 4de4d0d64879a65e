// Package oidcbackend implements authbackend.Client against an OpenID Connect issuer.
// Token grants go through golang.org/x/oauth2, discovery and ID token verification through
// go-oidc, and the account endpoints (sign-up, recovery, password change, logout) are plain
// JSON over HTTP relative to the account API URL.
package oidcbackend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/loginsession"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type Config struct {
	IssuerURL     string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	AccountAPIURL string
	Scopes        []string
	Timeout       time.Duration
}

// Provider is the issuer shared by every client. It is safe for concurrent use.
type Provider struct {
	oidc       *oidc.Provider
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	accountURL string
	httpClient *http.Client
	log        zerolog.Logger
}

type ProviderOption func(*Provider)

func WithLogger(l zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.log = l
	}
}

// WithHTTPClient replaces the client used for discovery, token grants and account calls.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// NewProvider runs OIDC discovery against cfg.IssuerURL.
func NewProvider(ctx context.Context, cfg Config, options ...ProviderOption) (*Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Provider{
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Logger.With().Str("component", "oidc_backend").Logger(),
	}
	for _, opt := range options {
		opt(p)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, p.httpClient), cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetwork, "[NewProvider] discovery for %s: %v", cfg.IssuerURL, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	if !contains(scopes, oidc.ScopeOfflineAccess) {
		scopes = append(scopes, oidc.ScopeOfflineAccess)
	}

	p.oidc = provider
	p.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	p.accountURL = strings.TrimRight(cfg.AccountAPIURL, "/")
	if p.accountURL == "" {
		p.accountURL = strings.TrimRight(cfg.IssuerURL, "/")
	}
	return p, nil
}

// ClientFor returns the backend view of one browser client. Its session lives in cache
// under clientID.
func (p *Provider) ClientFor(clientID string, cache loginsession.Repo) *Client {
	return &Client{
		p:        p,
		clientID: clientID,
		cache:    cache,
		nowTime:  time.Now,
		log:      p.log.With().Str("client_id", clientID).Logger(),
	}
}

func (p *Provider) context(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.httpClient)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
