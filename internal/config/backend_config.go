package config

import "time"

// BackendConfig locates the identity backend that owns sessions.
type BackendConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetAccountAPIURL() string
	GetBackendTimeout() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetIssuerURL() string {
	return GetEnv("AUTH_ISSUER_URL", "http://localhost:9999")
}

func (Backend) GetClientID() string {
	return GetEnv("AUTH_CLIENT_ID", "brandbolt")
}

func (Backend) GetClientSecret() string {
	return GetEnv("AUTH_CLIENT_SECRET", "")
}

// GetAccountAPIURL is the base URL of the sign-up, recovery and user endpoints.
// Defaults to the issuer.
func (b Backend) GetAccountAPIURL() string {
	return GetEnv("AUTH_ACCOUNT_API_URL", b.GetIssuerURL())
}

func (Backend) GetBackendTimeout() time.Duration {
	return GetDuration("AUTH_BACKEND_TIMEOUT", 10*time.Second)
}
