package main

import (
	"os"
	"strconv"
	"time"

	"github.com/edmondie/rabit/pkg/logging"
)

// Config is the process configuration. Environment variables provide the
// defaults, command line flags override them.
type Config struct {
	Port string

	LogLevel       string
	LogPretty      bool
	LogRedisURL    string
	LogRedisStream string

	ChromeURL   string
	PageTimeout time.Duration

	OTLPEndpoint string
}

// configFromEnv reads the configuration from the environment.
func configFromEnv() Config {
	return Config{
		Port:           getEnv("PORT", "3500"),
		LogLevel:       getEnv("LOG_LEVEL", string(logging.LevelInfo)),
		LogPretty:      getEnvBool("LOG_PRETTY", false),
		LogRedisURL:    getEnv("LOG_REDIS_URL", ""),
		LogRedisStream: getEnv("LOG_REDIS_STREAM", logging.DefaultStream),
		ChromeURL:      getEnv("CHROME_URL", ""),
		PageTimeout:    getEnvDuration("PAGE_TIMEOUT", 0),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
