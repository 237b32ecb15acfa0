package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/edmondie/rabit/pkg/cards"
	"github.com/edmondie/rabit/pkg/session"
)

// tab is one session: a target inside its own browser context.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    session.Config

	// Main frame and loader of the last settled document.
	frameID  cdp.FrameID
	loaderID cdp.LoaderID

	closeOnce sync.Once
	closeErr  error
}

// configure applies cfg to the tab before any navigation.
func configure(tabCtx context.Context, cfg session.Config) []chromedp.Action {
	ua := emulation.SetUserAgentOverride(cfg.UserAgent)
	if cfg.AcceptLanguage != "" {
		ua = ua.WithAcceptLanguage(cfg.AcceptLanguage)
	}
	actions := []chromedp.Action{network.Enable(), ua}

	if cfg.AcceptLanguage != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": cfg.AcceptLanguage,
		}))
	}
	if cfg.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(cfg.Timezone))
	}

	if geo := cfg.Geolocation; geo != nil {
		var contextID cdp.BrowserContextID
		if c := chromedp.FromContext(tabCtx); c != nil {
			contextID = c.BrowserContextID
		}
		for _, origin := range cfg.PermissionOrigins {
			grant := cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation}).
				WithOrigin(origin)
			if contextID != "" {
				grant = grant.WithBrowserContextID(contextID)
			}
			actions = append(actions, grant)
		}
		actions = append(actions, emulation.SetGeolocationOverride().
			WithLatitude(geo.Latitude).
			WithLongitude(geo.Longitude).
			WithAccuracy(geo.Accuracy))
	}
	return actions
}

// run executes actions on the tab. The run stops when ctx ends or after
// timeout (zero means no timeout); the tab itself stays open.
func (t *tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(t.ctx, timeout)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// idleEvent is the lifecycle event Chrome fires once no more than two
// network connections stayed open for 500ms.
const idleEvent = "networkAlmostIdle"

// Navigate implements session.Session. It returns once the new document
// reached network idle, not at the load event.
func (t *tab) Navigate(ctx context.Context, target string) error {
	err := t.run(ctx, t.cfg.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		idle := listenIdle(ctx)
		frameID, loaderID, errText, err := page.Navigate(target).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("page load error %s", errText)
		}
		ev, err := waitIdle(ctx, idle, func(ev *page.EventLifecycleEvent) bool {
			return ev.FrameID == frameID && (loaderID == "" || ev.LoaderID == loaderID)
		})
		if err != nil {
			return err
		}
		t.frameID, t.loaderID = ev.FrameID, ev.LoaderID
		return nil
	}))
	if err != nil {
		return classify(fmt.Errorf("navigate %s: %w", target, err))
	}
	return nil
}

// Reload implements session.Session. Like Navigate it waits for the
// reloaded document to reach network idle.
func (t *tab) Reload(ctx context.Context) error {
	err := t.run(ctx, t.cfg.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		idle := listenIdle(ctx)
		if err := page.Reload().Do(ctx); err != nil {
			return err
		}
		ev, err := waitIdle(ctx, idle, func(ev *page.EventLifecycleEvent) bool {
			if t.frameID != "" && ev.FrameID != t.frameID {
				return false
			}
			return ev.LoaderID != t.loaderID
		})
		if err != nil {
			return err
		}
		t.frameID, t.loaderID = ev.FrameID, ev.LoaderID
		return nil
	}))
	if err != nil {
		return classify(fmt.Errorf("reload: %w", err))
	}
	return nil
}

// listenIdle buffers network idle lifecycle events of the tab until ctx
// ends. It must be installed before the navigation starts.
func listenIdle(ctx context.Context) <-chan *page.EventLifecycleEvent {
	ch := make(chan *page.EventLifecycleEvent, 16)
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || e.Name != idleEvent {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	return ch
}

// waitIdle blocks until an event accepted by match arrives or ctx ends.
func waitIdle(ctx context.Context, events <-chan *page.EventLifecycleEvent, match func(*page.EventLifecycleEvent) bool) (*page.EventLifecycleEvent, error) {
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", idleEvent, ctx.Err())
		}
	}
}

// Present implements session.Session.
func (t *tab) Present(ctx context.Context, selector string) (bool, error) {
	var found bool
	if err := t.run(ctx, 0, chromedp.Evaluate(presenceScript(selector), &found)); err != nil {
		return false, fmt.Errorf("query %s: %w", selector, err)
	}
	return found, nil
}

// ExtractAll implements session.Session. The rendered document is
// snapshotted once and mapped outside the browser.
func (t *tab) ExtractAll(ctx context.Context, selector string, mapping cards.Mapping) ([]cards.RawCard, error) {
	var (
		html     string
		location string
	)
	err := t.run(ctx, 0,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	base, err := url.Parse(location)
	if err != nil {
		base = nil
	}
	return cards.Select(doc, selector, base, mapping), nil
}

// Close implements session.Session. It closes the tab and disposes its
// browser context.
func (t *tab) Close() error {
	t.closeOnce.Do(func() {
		err := chromedp.Cancel(t.ctx)
		t.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			t.closeErr = fmt.Errorf("close tab: %w", err)
		}
	})
	return t.closeErr
}

// presenceScript returns a JS expression that is true when selector
// matches at least one element.
func presenceScript(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf("document.querySelector(%s) !== null", quoted)
}
