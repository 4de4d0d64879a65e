package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/internal/config"
	"github.com/jrsteele09/brandbolt/internal/metrics"
	"github.com/jrsteele09/brandbolt/pendingpath"
	"github.com/jrsteele09/brandbolt/server/authflowrepo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the server does not own.
type Deps struct {
	Backends  BackendFactory
	AuthFlows authflowrepo.Repo
	Pending   pendingpath.Repo
	// Registry receives the service metrics and is served on /metrics.
	Registry *prometheus.Registry
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	clients   *ClientRegistry
	authFlows authflowrepo.Repo
	pending   pendingpath.Repo
	guard     auth.Guard
	routeTree auth.Routes
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	log       zerolog.Logger

	loadingTmpl       *template.Template
	callbackErrorTmpl *template.Template
}

func New(c config.Config, deps Deps) (*Server, error) {
	if deps.Backends == nil {
		return nil, fmt.Errorf("[Server New] a backend factory is required")
	}
	if deps.AuthFlows == nil {
		deps.AuthFlows = authflowrepo.NewInMemoryRepo(c.GetAuthFlowTimeout())
	}
	if deps.Pending == nil {
		deps.Pending = pendingpath.NewInMemoryRepo(c.GetAuthFlowTimeout())
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	m := metrics.New(deps.Registry)
	routes := auth.DefaultRoutes()
	s := &Server{
		env:       c.GetEnv(),
		mux:       http.NewServeMux(),
		config:    c,
		authFlows: deps.AuthFlows,
		pending:   deps.Pending,
		guard:     auth.NewGuard(routes),
		routeTree: routes,
		metrics:   m,
		gatherer:  deps.Registry,
		log:       log.Logger.With().Str("component", "server").Logger(),

		loadingTmpl:       mustParseTemplate("loading.html"),
		callbackErrorTmpl: mustParseTemplate("callback_error.html"),
	}
	s.clients = NewClientRegistry(deps.Backends, deps.Pending,
		WithRoutes(routes),
		WithMaxIdle(c.GetMaxSessionAge()),
		WithCallbackTimeout(c.GetCallbackTimeout()),
		WithRegistryMetrics(m),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Clients exposes the per-client registry so the caller can run its janitor.
func (s *Server) Clients() *ClientRegistry {
	return s.clients
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.log.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
