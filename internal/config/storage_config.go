package config

type StorageConfig interface {
	// GetRedisURL returns the Redis URL for pending redirect paths. Empty means in-memory.
	GetRedisURL() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}

type LoggingConfig interface {
	GetLogLevel() string
	GetLogFormat() string
}

type Logging struct{}

var _ LoggingConfig = Logging{}

func (Logging) GetLogLevel() string {
	return GetEnv("LOG_LEVEL", "info")
}

// GetLogFormat returns "json" or "console".
func (l Logging) GetLogFormat() string {
	return GetEnv("LOG_FORMAT", "console")
}
