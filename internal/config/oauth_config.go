package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetCallbackTimeout() time.Duration
	GetCallbackErrorDelay() time.Duration
	GetAuthFlowTimeout() time.Duration
	GetOAuthScopes() []string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetCallbackTimeout bounds how long the callback waits for a session to materialise.
func (OAuth) GetCallbackTimeout() time.Duration {
	return GetDuration("CALLBACK_TIMEOUT", 15*time.Second)
}

// GetCallbackErrorDelay is how long a callback failure message is shown before redirecting.
func (OAuth) GetCallbackErrorDelay() time.Duration {
	return GetDuration("CALLBACK_ERROR_DELAY", 3*time.Second)
}

// GetAuthFlowTimeout is the lifetime of a PKCE verifier and of a pending pre-auth path.
func (OAuth) GetAuthFlowTimeout() time.Duration {
	return GetDuration("AUTH_FLOW_TIMEOUT", 10*time.Minute)
}

func (OAuth) GetOAuthScopes() []string {
	return strings.Fields(GetEnv("OAUTH_SCOPES", "openid profile email"))
}
