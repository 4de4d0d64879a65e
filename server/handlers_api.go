package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 16 << 10
)

// StateResponse is the body of every auth API reply.
type StateResponse struct {
	State auth.StateView `json:"state"`
	// NavigateTo is set when the coordinator moved the client since its last poll.
	NavigateTo string `json:"navigate_to,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StateHandler reports the client's auth state. With ?path= it also runs the route
// guards for that path, so a poll from a protected route learns it must move.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())
		if path := r.URL.Query().Get("path"); path != "" {
			c.nav.visit(path)
			switch {
			case s.routeTree.IsProtected(path):
				c.Coordinator.RequireAuth(path)
			case s.routeTree.IsPublicOnly(path):
				c.Coordinator.RequireNoAuth(path)
			}
		}
		s.writeState(w, c, c.Store().State())
	}
}

func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds authbackend.Credentials
		if !decodeJSON(w, r, &creds) {
			return
		}
		c := clientFromContext(r.Context())
		s.writeResult(w, c, c.Store().SignIn(r.Context(), creds))
	}
}

func (s *Server) SignUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds authbackend.Credentials
		if !decodeJSON(w, r, &creds) {
			return
		}
		c := clientFromContext(r.Context())
		s.writeResult(w, c, c.Store().SignUp(r.Context(), creds))
	}
}

// SignOutHandler always answers with the signed out state. A failed remote sign-out is
// reported in the state's error field rather than as a failed request.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())
		s.writeState(w, c, c.Store().SignOut(r.Context()))
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		c := clientFromContext(r.Context())
		s.writeResult(w, c, c.Store().ResetPassword(r.Context(), body.Email))
	}
}

func (s *Server) UpdatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		c := clientFromContext(r.Context())
		s.writeResult(w, c, c.Store().UpdatePassword(r.Context(), body.Password))
	}
}

// RefreshHandler re-validates the session with the backend.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())
		s.writeState(w, c, c.Store().GetCurrentUser(r.Context()))
	}
}

// writeResult writes st, or an error reply when the action recorded one.
func (s *Server) writeResult(w http.ResponseWriter, c *Client, st auth.State) {
	if st.Err != nil {
		writeJSONError(w, st.Err)
		return
	}
	s.writeState(w, c, st)
}

func (s *Server) writeState(w http.ResponseWriter, c *Client, st auth.State) {
	writeJSON(w, http.StatusOK, StateResponse{
		State:      st.View(),
		NavigateTo: c.nav.takeDirective(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, errors.Wrapf(errors.ErrValidation, "invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, err error) {
	code := errors.Code(err)
	writeJSON(w, statusFor(code), errorResponse{Error: err.Error(), Code: code})
}

func statusFor(code string) int {
	switch code {
	case "validation_error", "provider_not_supported", "invalid_state":
		return http.StatusBadRequest
	case "invalid_credentials", "no_session":
		return http.StatusUnauthorized
	case "access_denied":
		return http.StatusForbidden
	case "timeout":
		return http.StatusGatewayTimeout
	case "network_error", "provider_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
