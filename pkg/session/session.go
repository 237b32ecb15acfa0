// Package session owns the lifecycle of browser sessions: one fresh,
// configured session per page, always released before control returns.
package session

import (
	"context"
	"fmt"

	"github.com/edmondie/rabit/pkg/cards"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for session lifecycle.
var (
	sessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rabit_sessions_open",
		Help: "Number of browser sessions currently open",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rabit_sessions_total",
		Help: "Total browser sessions by outcome",
	}, []string{"outcome"})
)

// Browser opens isolated rendering sessions.
type Browser interface {
	// NewSession opens a session with cfg applied before any navigation.
	NewSession(ctx context.Context, cfg Config) (Session, error)
}

// Session is one rendered tab. Implementations need not be safe for
// concurrent use; the pipeline drives a session from one goroutine.
type Session interface {
	// Navigate loads url, bounded by the configured navigation timeout.
	Navigate(ctx context.Context, url string) error

	// Reload reloads the current page.
	Reload(ctx context.Context) error

	// Present reports whether at least one element matches selector.
	Present(ctx context.Context, selector string) (bool, error)

	// ExtractAll applies mapping to every element matching selector.
	ExtractAll(ctx context.Context, selector string, mapping cards.Mapping) ([]cards.RawCard, error)

	// Close releases every resource held by the session.
	Close() error
}

// Manager hands out scoped sessions.
type Manager struct {
	browser Browser
	logger  zerolog.Logger
}

// NewManager creates a session manager on top of browser.
func NewManager(browser Browser) *Manager {
	if browser == nil {
		panic("browser cannot be nil")
	}
	return &Manager{
		browser: browser,
		logger:  log.With().Str("component", "session").Logger(),
	}
}

// WithSession opens a session, runs fn with it and closes it on every
// exit path, including panics. A close failure is logged and never
// replaces the error returned by fn.
func (m *Manager) WithSession(ctx context.Context, cfg Config, fn func(Session) error) (err error) {
	s, err := m.browser.NewSession(ctx, cfg)
	if err != nil {
		sessionsTotal.WithLabelValues("open_failed").Inc()
		return fmt.Errorf("open session: %w", err)
	}
	sessionsOpen.Inc()

	m.logger.Debug().
		Str("accept_language", cfg.AcceptLanguage).
		Str("timezone", cfg.Timezone).
		Bool("geolocation", cfg.Geolocation != nil).
		Msg("Session opened")

	defer func() {
		sessionsOpen.Dec()
		if closeErr := s.Close(); closeErr != nil {
			m.logger.Warn().Err(closeErr).Msg("Failed to close session")
		}

		outcome := "ok"
		if r := recover(); r != nil {
			sessionsTotal.WithLabelValues("panic").Inc()
			panic(r)
		}
		if err != nil {
			outcome = "error"
		}
		sessionsTotal.WithLabelValues(outcome).Inc()
	}()

	return fn(s)
}
