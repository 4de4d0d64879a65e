package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	BackendConfig
	StorageConfig
	LoggingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Backend
	Storage
	Logging
}

// New loads .env files, if present, and returns the environment backed configuration.
func New() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	return mainConfig{}
}
