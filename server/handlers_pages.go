package server

import (
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	// pageInitWait is how long a page request waits for a first initialization before
	// falling back to the spinner.
	pageInitWait = 2 * time.Second
)

type shellPageData struct {
	AppName       string
	Path          string
	Authenticated bool
	Email         string
	Error         string
}

// PageHandler serves the app shell for a route the guard let through.
func (s *Server) PageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("shell.html")

	return func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())
		st := c.Store().State()

		data := shellPageData{
			AppName:       s.config.GetAppName(),
			Path:          r.URL.Path,
			Authenticated: st.IsAuthenticated(),
			Error:         r.URL.Query().Get("error"),
		}
		if st.User != nil {
			data.Email = st.User.Email
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render shell template")
		}
	}
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	if err := s.loadingTmpl.Execute(w, map[string]string{"AppName": s.config.GetAppName()}); err != nil {
		log.Err(err).Msg("Failed to render loading template")
	}
}

type callbackErrorData struct {
	AppName      string
	Message      string
	RedirectTo   string
	DelaySeconds int
}

func (s *Server) renderCallbackError(w http.ResponseWriter, r *http.Request, message, redirectTo string) {
	data := callbackErrorData{
		AppName:      s.config.GetAppName(),
		Message:      message,
		RedirectTo:   redirectTo,
		DelaySeconds: int(math.Ceil(s.config.GetCallbackErrorDelay().Seconds())),
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	if err := s.callbackErrorTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render callback error template")
	}
}

// authRedirect sends the user to the auth page remembering where they were going.
func authRedirect(authPath, next string) string {
	q := url.Values{}
	q.Set("next", next)
	return authPath + "?" + q.Encode()
}
