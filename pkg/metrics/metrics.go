// Package metrics exposes the Prometheus registry used by rabit.
// All metrics are defined in their respective packages (retry, session,
// pagination) via promauto to keep those packages self-contained.
//
// This package provides the scrape handler and documents every metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by rabit.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the Prometheus exposition format for GET /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Scrape Metrics (pkg/pagination):
//   - rabit_scrapes_total{outcome} (Counter): Scrape requests by outcome
//     (done, no_more_cards, invalid, error, cancelled)
//   - rabit_pages_total{outcome} (Counter): Pages processed (ok, empty, failed)
//   - rabit_entries_total (Counter): Result entries emitted
//   - rabit_scrape_duration_seconds (Histogram): Scrape request duration
//
// Session Metrics (pkg/session):
//   - rabit_sessions_open (Gauge): Browser sessions currently open
//   - rabit_sessions_total{outcome} (Counter): Sessions by outcome (ok, error, panic, open_failed)
//
// Retry Metrics (pkg/retry):
//   - rabit_retries_total{policy} (Counter): Retry attempts by policy (navigation, empty_result)
//   - rabit_retry_exhausted_total{policy} (Counter): Operations that exhausted their attempts
//
// Logging Metrics (pkg/logging):
//   - rabit_log_lines_dropped_total (Counter): Lines dropped by the async log sink buffer
//
// Example Prometheus Queries:
//
//   # Scrape Error Rate
//   sum(rate(rabit_scrapes_total{outcome="error"}[5m])) / sum(rate(rabit_scrapes_total[5m]))
//
//   # Session Leak Check (should return to 0 when idle)
//   rabit_sessions_open
//
//   # Detached-frame Retries
//   rate(rabit_retries_total{policy="navigation"}[5m])
//
//   # P95 Scrape Duration
//   histogram_quantile(0.95, rate(rabit_scrape_duration_seconds_bucket[5m]))
