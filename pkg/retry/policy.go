// Package retry implements the bounded, classified retry policies used
// around page navigation and card presence checks.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rabit_retries_total",
		Help: "Total number of retry attempts by policy",
	}, []string{"policy"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rabit_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by policy",
	}, []string{"policy"})
)

// Policy declares how an operation is retried.
type Policy struct {
	// Name labels logs and metrics.
	Name string

	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int

	// Backoff is the pause between attempts. Zero retries immediately.
	Backoff time.Duration

	// IsTransient decides whether an error is worth another attempt.
	// Errors it rejects are returned unchanged.
	IsTransient func(error) bool
}

// Policy names.
const (
	PolicyNavigation  = "navigation"
	PolicyEmptyResult = "empty_result"
)

// NavigationPolicy retries a navigation once when the frame was detached.
func NavigationPolicy() Policy {
	return Policy{
		Name:        PolicyNavigation,
		MaxAttempts: 2,
		IsTransient: IsDetached,
	}
}

// EmptyResultPolicy re-checks a page once when no card was found.
func EmptyResultPolicy() Policy {
	return Policy{
		Name:        PolicyEmptyResult,
		MaxAttempts: 2,
		IsTransient: IsNoCards,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, or
// MaxAttempts is reached. attempt starts at 1.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("policy", p.Name).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if p.IsTransient == nil || !p.IsTransient(err) {
			return err
		}

		if attempt >= maxAttempts {
			break
		}

		retriesTotal.WithLabelValues(p.Name).Inc()

		log.Warn().
			Err(err).
			Str("policy", p.Name).
			Int("attempt", attempt).
			Dur("backoff", p.Backoff).
			Msg("Retrying after transient failure")

		if err := p.wait(ctx); err != nil {
			return err
		}
	}

	retryExhaustedTotal.WithLabelValues(p.Name).Inc()
	log.Warn().
		Str("policy", p.Name).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

// wait pauses for Backoff, returning early when ctx ends.
func (p Policy) wait(ctx context.Context) error {
	if p.Backoff <= 0 {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}
		return nil
	}

	timer := time.NewTimer(p.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		log.Warn().
			Str("policy", p.Name).
			Msg("Context cancelled during retry backoff")
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
