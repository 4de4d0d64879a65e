package server

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	// clientCookieName identifies the browser; everything else lives server side.
	clientCookieName   = "bb_client"
	clientCookieMaxAge = 30 * 24 * 60 * 60
)

// clientID returns the browser's client ID, issuing a fresh cookie when it has none or
// presents one that is not a UUID.
func (s *Server) clientID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(clientCookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	s.setClientCookie(w, r, id)
	return id
}

func (s *Server) setClientCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies() || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   clientCookieMaxAge,
	})
}
