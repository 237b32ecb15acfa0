package pagination

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/edmondie/rabit/pkg/cards"
	"github.com/edmondie/rabit/pkg/projection"
	"github.com/edmondie/rabit/pkg/request"
	"github.com/edmondie/rabit/pkg/retry"
	"github.com/edmondie/rabit/pkg/session"
	"github.com/edmondie/rabit/pkg/stream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/edmondie/rabit/pkg/pagination"

// ErrStreamWrite wraps a sink failure. Nothing more is emitted once the
// sink failed.
var ErrStreamWrite = errors.New("stream write failed")

// errNoMoreCards ends the loop normally.
var errNoMoreCards = errors.New("no more cards")

// internalErrorMessage is sent to the client when the pipeline panicked.
const internalErrorMessage = "internal error"

// Config holds driver configuration.
type Config struct {
	// PageTimeout bounds one page from session open to extraction.
	// Zero disables the deadline.
	PageTimeout time.Duration

	// Navigation is the retry policy around page navigation.
	Navigation retry.Policy

	// EmptyResult is the retry policy around the card presence check.
	EmptyResult retry.Policy
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		Navigation:  retry.NavigationPolicy(),
		EmptyResult: retry.EmptyResultPolicy(),
	}
}

// Driver runs scrape requests.
type Driver struct {
	manager *session.Manager
	config  Config
	logger  zerolog.Logger
}

// NewDriver creates a driver on top of manager.
func NewDriver(manager *session.Manager, config Config) *Driver {
	if manager == nil {
		panic("session manager cannot be nil")
	}
	if config.Navigation.MaxAttempts <= 0 {
		config.Navigation = retry.NavigationPolicy()
	}
	if config.EmptyResult.MaxAttempts <= 0 {
		config.EmptyResult = retry.EmptyResultPolicy()
	}
	if config.PageTimeout < 0 {
		config.PageTimeout = 0
	}

	return &Driver{
		manager: manager,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// Run executes req and streams its events to sink. It returns nil when the
// request ended with a done event and the terminal error otherwise.
func (d *Driver) Run(ctx context.Context, req request.ScrapeRequest, sink stream.EventSink) (err error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scrape")
	defer span.End()

	outcome := outcomeDone
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Msg("Scrape pipeline panicked")
			err = fmt.Errorf("pipeline panic: %v", r)
			outcome = outcomeError
			_ = sink.Emit(stream.KindError, stream.Error{Message: internalErrorMessage})
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		scrapesTotal.WithLabelValues(outcome).Inc()
		scrapeDuration.Observe(time.Since(start).Seconds())
	}()

	v, err := request.Validate(req)
	if err != nil {
		outcome = outcomeInvalid
		d.logger.Warn().Err(err).Msg("Rejected scrape request")
		return d.fail(sink, err)
	}

	span.SetAttributes(
		attribute.String("rabit.country", v.Country),
		attribute.String("rabit.portal", v.Portal),
		attribute.String("rabit.range", v.Range.String()),
	)

	logger := d.logger.With().
		Str("country", v.Country).
		Str("portal", v.Portal).
		Logger()

	if err := emit(sink, stream.KindProgress, stream.Progress{
		Message: fmt.Sprintf("Scraping %s programs in %s...", v.Degree, v.Country),
	}); err != nil {
		outcome = outcomeCancelled
		return err
	}

	cfg := session.ResolveConfig(v.Country)
	results := make([]projection.Entry, 0)

	for page := v.Range.Start; v.Range.Includes(page); page++ {
		entries, err := d.runPage(ctx, v, cfg, page, sink, logger)
		if errors.Is(err, errNoMoreCards) {
			outcome = outcomeNoCards
			break
		}
		if err != nil {
			if errors.Is(err, ErrStreamWrite) || ctx.Err() != nil {
				outcome = outcomeCancelled
			} else {
				outcome = outcomeError
			}
			logger.Error().Err(err).Int("page", page).Msg("Scrape failed")
			return d.fail(sink, err)
		}
		results = append(results, entries...)
	}

	elapsed := math.Round(time.Since(start).Seconds()*10) / 10
	logger.Info().
		Int("count", len(results)).
		Float64("elapsed_seconds", elapsed).
		Msg("Scrape complete")

	if err := emit(sink, stream.KindDone, stream.Done{
		Count:          len(results),
		Results:        results,
		ElapsedSeconds: elapsed,
	}); err != nil {
		outcome = outcomeCancelled
		return err
	}
	return nil
}

// runPage loads one page in its own session, then emits its entries.
func (d *Driver) runPage(ctx context.Context, v request.Validated, cfg session.Config, page int, sink stream.EventSink, logger zerolog.Logger) ([]projection.Entry, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scrape.page")
	defer span.End()
	span.SetAttributes(attribute.Int("rabit.page", page))

	if d.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.PageTimeout)
		defer cancel()
	}

	listURL := request.ListURL(v.Portal, v.Country, page)
	logger = logger.With().Int("page", page).Str("url", listURL).Logger()
	logger.Debug().Msg("Loading page")

	if err := emit(sink, stream.KindProgress, stream.Progress{
		Message: "Loading page " + listURL,
	}); err != nil {
		return nil, err
	}

	raw, err := d.loadCards(ctx, cfg, listURL, page, logger)
	if errors.Is(err, retry.ErrNoCards) {
		pagesTotal.WithLabelValues("empty").Inc()
		logger.Info().Msg("No more cards")
		if err := emit(sink, stream.KindWarning, stream.Warning{
			Message: fmt.Sprintf("No more cards found on page %d", page),
		}); err != nil {
			return nil, err
		}
		return nil, errNoMoreCards
	}
	if err != nil {
		pagesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	pagesTotal.WithLabelValues("ok").Inc()

	logger.Info().Int("cards", len(raw)).Msg("Extracted cards")
	if err := emit(sink, stream.KindProgress, stream.Progress{
		Message: fmt.Sprintf("Found %d programs on page %d", len(raw), page),
	}); err != nil {
		return nil, err
	}

	entries := projection.ProjectAll(raw, v.Fields, v.Country)
	for _, entry := range entries {
		if err := emit(sink, stream.KindEntry, stream.EntryPayload{Entry: entry}); err != nil {
			return nil, err
		}
		entriesTotal.Inc()
	}
	return entries, nil
}

// loadCards navigates, checks for cards and extracts them inside one
// scoped session. It returns retry.ErrNoCards (possibly wrapped) when the
// page stayed empty after the reload.
func (d *Driver) loadCards(ctx context.Context, cfg session.Config, listURL string, page int, logger zerolog.Logger) ([]cards.RawCard, error) {
	var raw []cards.RawCard

	err := d.manager.WithSession(ctx, cfg, func(s session.Session) error {
		err := d.config.Navigation.Do(ctx, func(ctx context.Context, attempt int) error {
			if attempt > 1 {
				logger.Warn().Int("attempt", attempt).Msg("Frame detached, retrying navigation")
			}
			return s.Navigate(ctx, listURL)
		})
		if err != nil {
			return fmt.Errorf("load page %d: %w", page, err)
		}

		err = d.config.EmptyResult.Do(ctx, func(ctx context.Context, attempt int) error {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("No cards found, reloading page")
				if err := s.Reload(ctx); err != nil {
					return fmt.Errorf("reload page %d: %w", page, err)
				}
			}
			present, err := s.Present(ctx, cards.CardSelector)
			if err != nil {
				return fmt.Errorf("check cards on page %d: %w", page, err)
			}
			if !present {
				return retry.ErrNoCards
			}
			return nil
		})
		if err != nil {
			return err
		}

		raw, err = s.ExtractAll(ctx, cards.CardSelector, cards.MapCard)
		if err != nil {
			return fmt.Errorf("extract cards on page %d: %w", page, err)
		}
		return nil
	})
	return raw, err
}

// fail emits the terminal error event for err. Sink failures are returned
// as they are.
func (d *Driver) fail(sink stream.EventSink, err error) error {
	if errors.Is(err, ErrStreamWrite) {
		return err
	}
	if emitErr := emit(sink, stream.KindError, stream.Error{Message: err.Error()}); emitErr != nil {
		d.logger.Debug().Err(emitErr).Msg("Could not deliver error event")
	}
	return err
}

func emit(sink stream.EventSink, kind stream.Kind, payload interface{}) error {
	if err := sink.Emit(kind, payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStreamWrite, kind, err)
	}
	return nil
}
