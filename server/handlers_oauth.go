package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/server/authflowrepo"
	"github.com/jrsteele09/brandbolt/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// OAuthStartHandler begins an OAuth sign-in: it remembers where the user was going,
// stores a PKCE verifier under a fresh state and redirects to the provider.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())

		provider := session.ParseProvider(r.PathValue("provider"))
		if !provider.IsOAuth() {
			redirectWithError(w, r, s.routeTree.Auth, errors.ErrProviderNotSupported.Error())
			return
		}

		if next := r.URL.Query().Get("next"); next != "" {
			if err := s.pending.Put(r.Context(), c.ID, next); err != nil {
				log.Warn().Err(err).Str("client_id", c.ID).Msg("failed to store pending redirect path")
			}
		}

		state := uuid.NewString()
		verifier := oauth2.GenerateVerifier()
		err := s.authFlows.Upsert(state, &authflowrepo.AuthFlowState{
			ClientID:     c.ID,
			CodeVerifier: verifier,
			Provider:     provider,
			CreatedAt:    time.Now(),
		})
		if err != nil {
			log.Err(err).Msg("Failed to store auth flow state")
			redirectWithError(w, r, s.routeTree.Auth, "could not start sign in")
			return
		}

		authURL, err := c.Backend.AuthCodeURL(provider, state, verifier)
		if err != nil {
			_ = s.authFlows.Delete(state)
			redirectWithError(w, r, s.routeTree.Auth, err.Error())
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OAuthCallbackHandler is where the provider sends the browser back. The code exchange
// runs alongside the callback flow, which picks the session up either straight away or
// from the signed-in event.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())

		// Parse form to support both GET (query params) and POST (form_post response mode)
		if err := r.ParseForm(); err != nil {
			s.renderCallbackError(w, r, "invalid callback request", s.routeTree.Auth)
			return
		}
		c.nav.visit(r.URL.Path)

		req := auth.CallbackRequest{Query: r.Form, ClientKey: c.ID}
		if code := r.Form.Get("code"); code != "" && r.Form.Get("error") == "" {
			flow, err := s.takeAuthFlow(r.Form.Get("state"), c.ID)
			if err != nil {
				log.Warn().Err(err).Str("client_id", c.ID).Msg("rejected oauth callback")
				s.renderCallbackError(w, r, err.Error(), s.routeTree.Auth)
				return
			}
			req.Exchange = func(ctx context.Context) error {
				_, err := c.Backend.ExchangeCodeForSession(ctx, code, flow.CodeVerifier)
				return err
			}
		}

		res := c.Callback.Run(r.Context(), req)
		// The redirect below is the navigation; drop whatever the coordinator queued meanwhile.
		c.nav.takeDirective()
		if res.Err != nil {
			s.renderCallbackError(w, r, res.Err.Error(), res.Path)
			return
		}
		c.nav.visit(res.Path)
		http.Redirect(w, r, res.Path, http.StatusSeeOther)
	}
}

// takeAuthFlow returns and deletes the auth flow stored under state. It must belong to
// the same browser that started it.
func (s *Server) takeAuthFlow(state, clientID string) (*authflowrepo.AuthFlowState, error) {
	if state == "" {
		return nil, errors.Wrapf(errors.ErrInvalidState, "missing state")
	}
	flow, err := s.authFlows.Get(state)
	if err != nil {
		return nil, err
	}
	if err := s.authFlows.Delete(state); err != nil {
		log.Warn().Err(err).Msg("Failed to delete auth flow state")
	}
	if flow.ClientID != clientID {
		return nil, errors.Wrapf(errors.ErrInvalidState, "state issued to another client")
	}
	return flow, nil
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(errorMsg), http.StatusSeeOther)
}
