package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// Pages
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.PageHandler(), s.PageMiddleware()...))
	for _, page := range protectedPages {
		s.RegisterRouteHandler("GET "+page, ChainMiddleware(s.PageHandler(), s.PageMiddleware()...))
	}
	s.RegisterRouteHandler("GET "+RouteAuth, ChainMiddleware(s.PageHandler(), s.PageMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.PageHandler(), s.PageMiddleware()...))

	// OAuth
	s.RegisterRouteHandler("GET "+RouteOAuthStart, ChainMiddleware(s.OAuthStartHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleware()...)) // For form_post response mode

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIState, ChainMiddleware(s.StateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISignUp, ChainMiddleware(s.SignUpHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISignOut, ChainMiddleware(s.SignOutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIUpdatePassword, ChainMiddleware(s.UpdatePasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix, ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.CorsMiddleware))

	// Operational
	s.RegisterRouteHandler("GET "+RouteMetrics, s.MetricsHandler())
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
