package metrics_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edmondie/rabit/pkg/metrics"
	"github.com/edmondie/rabit/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry == nil {
		t.Error("Registry should not be nil")
	}

	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ExposesRetryMetrics(t *testing.T) {
	policy := retry.Policy{
		Name:        "metrics_test",
		MaxAttempts: 2,
		IsTransient: retry.IsNoCards,
	}
	_ = policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return retry.ErrNoCards
	})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`rabit_retries_total{policy="metrics_test"} 1`,
		`rabit_retry_exhausted_total{policy="metrics_test"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
