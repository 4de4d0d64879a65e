package config

import "time"

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetSecureCookies() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetMaxSessionAge is how long an idle client keeps its coordinator before eviction.
func (Security) GetMaxSessionAge() time.Duration {
	return GetDuration("MAX_SESSION_AGE", 30*time.Minute)
}

func (Security) GetSecureCookies() bool {
	return GetEnv("SECURE_COOKIES", "false") == "true"
}
