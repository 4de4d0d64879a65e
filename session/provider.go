package session

import "strings"

// Provider is an identity provider the backend can authenticate against.
type Provider string

const (
	ProviderUnknown  Provider = ""
	ProviderEmail    Provider = "email"
	ProviderLinkedIn Provider = "linkedin_oidc"
)

// ParseProvider maps a backend provider string onto a supported Provider.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ProviderEmail
	case "linkedin_oidc", "linkedin":
		return ProviderLinkedIn
	default:
		return ProviderUnknown
	}
}

// IsOAuth reports whether the provider signs in through a redirect.
func (p Provider) IsOAuth() bool {
	return p == ProviderLinkedIn
}

func (p Provider) String() string {
	if p == ProviderUnknown {
		return "unknown"
	}
	return string(p)
}
