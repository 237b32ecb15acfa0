// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Sinks receive every log line as JSON in addition to Output,
	// e.g. a RedisSink. Pretty formatting never applies to sinks.
	Sinks []io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	if len(cfg.Sinks) > 0 {
		writers := append([]io.Writer{output}, cfg.Sinks...)
		output = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// ParseLevel converts LogLevel to zerolog.Level.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Session setup (locale, timezone, geolocation)
//   - Page load start
//   - chromedp protocol messages
//   - Error events that could not be delivered
//
// Info: Normal operation events
//   - Scrape request received / completed
//   - Cards extracted per page
//   - No more cards on a page (end of data)
//   - Empty page reloads and operations that succeeded after a retry
//   - Browser and server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Transient failures being retried (detached frame)
//   - Retry exhaustion and backoffs cut short by cancellation
//   - Rejected or malformed scrape requests
//   - Session close and shutdown step failures
//   - Client disconnected mid-stream
//
// Error: Error conditions requiring attention
//   - Scrape aborted by a page error
//   - Recovered panics in the pipeline
//
// Context Fields:
//   - component: emitting package (pagination, session, retry, server)
//   - country, degree, portal: request parameters
//   - page: page index
//   - url: list page URL
//   - cards: number of cards extracted
//   - policy: retry policy name
//   - attempt: retry attempt number
//   - duration: request or page duration
