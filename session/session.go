package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the client's cached copy of a backend issued credential bundle.
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	IDToken      string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	Provider     Provider  `json:"provider"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// User is the identity projection of a session.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Name     string         `json:"name,omitempty"`
	Picture  string         `json:"picture,omitempty"`
	Provider Provider       `json:"provider"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AccessClaims are the claims read from a backend access token.
type AccessClaims struct {
	Email       string         `json:"email"`
	AppMetadata map[string]any `json:"app_metadata"`
	jwt.RegisteredClaims
}

// ProviderName returns app_metadata.provider.
func (c *AccessClaims) ProviderName() string {
	if c.AppMetadata == nil {
		return ""
	}
	p, _ := c.AppMetadata["provider"].(string)
	return p
}

// ParseAccessClaims reads the claims of a JWT access token without verifying the signature.
// The token has already been accepted by the backend that issued it; only the backend
// verifies it when it is presented again.
func ParseAccessClaims(accessToken string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("[ParseAccessClaims] %w", err)
	}
	return claims, nil
}

// FromTokens builds a Session from a token response. Identity fields come from the access
// token claims when it is a JWT; fallback identifies the user when it is opaque.
func FromTokens(accessToken, refreshToken, idToken string, expiry time.Time, fallback Provider) (*Session, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("[FromTokens] access token is empty")
	}
	s := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		ExpiresAt:    expiry,
		Provider:     fallback,
	}

	claims, err := ParseAccessClaims(accessToken)
	if err != nil {
		return s, nil
	}
	s.UserID = claims.Subject
	s.Email = claims.Email
	if p := ParseProvider(claims.ProviderName()); p != ProviderUnknown {
		s.Provider = p
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
