// Package browser implements session.Browser on top of Chrome through the
// DevTools protocol (chromedp).
//
// One Chrome process is shared by the whole service. Every session gets
// its own incognito browser context and tab, so cookies, storage and
// permission grants never leak between pages or requests.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/edmondie/rabit/pkg/retry"
	"github.com/edmondie/rabit/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds browser configuration.
type Config struct {
	// RemoteURL is the DevTools endpoint of an already running Chrome
	// (ws://host:9222). Empty launches a local Chrome.
	RemoteURL string

	// ExecPath overrides the Chrome binary for local launches.
	ExecPath string

	// Headful shows the browser window for local launches.
	Headful bool
}

// ErrClosed is returned by NewSession after Close.
var ErrClosed = errors.New("browser closed")

// Browser is a shared Chrome instance.
type Browser struct {
	mu          sync.Mutex
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	closed      bool
	logger      zerolog.Logger
}

// New starts (or connects to) Chrome. ctx bounds the startup only.
func New(ctx context.Context, cfg Config) (*Browser, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	}

	rootCtx, rootCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug().Str("component", "chromedp").Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Warn().Str("component", "chromedp").Msgf(format, args...)
		}),
	)

	// The first Run allocates the browser; stop waiting when ctx ends.
	stop := context.AfterFunc(ctx, rootCancel)
	err := chromedp.Run(rootCtx)
	stop()
	if err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b := &Browser{
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		logger:      log.With().Str("component", "browser").Logger(),
	}

	b.logger.Info().
		Bool("remote", cfg.RemoteURL != "").
		Msg("Browser started")

	return b, nil
}

// allocatorOptions returns the flags for a locally launched Chrome.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.DisableGPU,
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(session.DefaultUserAgent),
	)
	if cfg.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// NewSession implements session.Browser.
func (b *Browser) NewSession(ctx context.Context, cfg session.Config) (session.Session, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(b.rootCtx, chromedp.WithNewBrowserContext())
	b.mu.Unlock()

	t := &tab{ctx: tabCtx, cancel: tabCancel, cfg: cfg}

	// The first Run creates the target and starts its event loop on the
	// context it is given, so it must get tabCtx itself. ctx can still
	// abort the allocation by cancelling the whole tab.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	if !stop() && err == nil {
		err = context.Cause(tabCtx)
	}
	if err != nil {
		tabCancel()
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := t.run(ctx, 0, configure(tabCtx, cfg)...); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("configure tab: %w", err)
	}
	return t, nil
}

// Close shuts the browser down. Open sessions stop working.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := chromedp.Cancel(b.rootCtx)
	b.rootCancel()
	b.allocCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	b.logger.Info().Msg("Browser closed")
	return nil
}

// classify marks detached-frame failures so the navigation policy
// retries them.
func classify(err error) error {
	if err == nil || errors.Is(err, retry.ErrDetached) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "detached") {
		return fmt.Errorf("%w: %w", retry.ErrDetached, err)
	}
	return err
}
