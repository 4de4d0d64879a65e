package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages - public
	RouteAuth          = "/auth"
	RouteResetPassword = "/auth/reset-password"

	// Pages - protected
	RouteHome      = "/"
	RouteCalendar  = "/calendar"
	RouteContent   = "/content"
	RouteAnalytics = "/analytics"
	RoutePricing   = "/pricing"
	RouteSettings  = "/settings"
	RouteGoals     = "/goals"

	// OAuth
	RouteOAuthStart = "/auth/oauth/{provider}"
	RouteCallback   = "/auth/callback"

	// API Routes
	RouteAPIPrefix         = "/api/"
	RouteAPIState          = "/api/auth/state"
	RouteAPISignIn         = "/api/auth/signin"
	RouteAPISignUp         = "/api/auth/signup"
	RouteAPISignOut        = "/api/auth/signout"
	RouteAPIResetPassword  = "/api/auth/reset-password"
	RouteAPIUpdatePassword = "/api/auth/update-password"
	RouteAPIRefresh        = "/api/auth/refresh"

	// Operational
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)

var protectedPages = []string{
	RouteCalendar,
	RouteContent,
	RouteAnalytics,
	RoutePricing,
	RouteSettings,
	RouteGoals,
}
