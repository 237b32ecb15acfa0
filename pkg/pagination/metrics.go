package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scrape outcomes.
const (
	outcomeDone      = "done"
	outcomeNoCards   = "no_more_cards"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

// Prometheus metrics for the pagination loop.
var (
	scrapesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rabit_scrapes_total",
		Help: "Total scrape requests by outcome",
	}, []string{"outcome"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rabit_pages_total",
		Help: "Total pages processed by outcome",
	}, []string{"outcome"})

	entriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rabit_entries_total",
		Help: "Total result entries emitted",
	})

	scrapeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rabit_scrape_duration_seconds",
		Help:    "Scrape request duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)
