package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edmondie/rabit/pkg/session"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// devtoolsMessage is one DevTools protocol frame in either direction.
type devtoolsMessage struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    interface{}     `json:"result,omitempty"`
}

// fakeDevTools answers just enough of the DevTools protocol for chromedp
// to open tabs, evaluate scripts and navigate. Navigations settle with a
// networkAlmostIdle lifecycle event unless idle is false.
type fakeDevTools struct {
	idle bool

	mu       sync.Mutex
	targets  int
	loaders  int
	commands []string
}

func newFakeDevTools(t *testing.T, idle bool) (*fakeDevTools, string) {
	t.Helper()

	f := &fakeDevTools{idle: idle}
	srv := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(srv.Close)

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/devtools/browser/fake"
	return f, wsURL
}

func (f *fakeDevTools) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/json/version" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "HeadlessChrome/120.0.0.0",
			"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/browser/fake",
		})
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	go f.serveConn(conn)
}

func (f *fakeDevTools) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var req devtoolsMessage
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}

		result, events := f.handle(req)
		if err := f.send(conn, devtoolsMessage{ID: req.ID, SessionID: req.SessionID, Result: result}); err != nil {
			return
		}
		for _, ev := range events {
			if err := f.send(conn, ev); err != nil {
				return
			}
		}
		if req.Method == "Browser.close" {
			return
		}
	}
}

func (f *fakeDevTools) send(conn net.Conn, msg devtoolsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return wsutil.WriteServerText(conn, data)
}

// handle returns the result of one command and the events that follow it.
func (f *fakeDevTools) handle(req devtoolsMessage) (interface{}, []devtoolsMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, req.Method)

	empty := map[string]interface{}{}
	switch req.Method {
	case "Target.setDiscoverTargets":
		if req.SessionID != "" {
			return empty, nil
		}
		created := devtoolsMessage{
			Method: "Target.targetCreated",
			Params: mustJSON(map[string]interface{}{
				"targetInfo": targetInfo("root"),
			}),
		}
		return empty, []devtoolsMessage{created}

	case "Target.createBrowserContext":
		return map[string]string{"browserContextId": "CTX"}, nil

	case "Target.createTarget":
		f.targets++
		return map[string]string{"targetId": fmt.Sprintf("T%d", f.targets)}, nil

	case "Target.attachToTarget":
		var params struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(req.Params, &params)
		return map[string]string{"sessionId": "S-" + params.TargetID}, nil

	case "Target.getTargetInfo":
		return map[string]interface{}{"targetInfo": targetInfo("root")}, nil

	case "Target.closeTarget":
		return map[string]bool{"success": true}, nil

	case "Page.getFrameTree":
		return map[string]interface{}{
			"frameTree": map[string]interface{}{
				"frame": map[string]string{"id": "MAIN", "loaderId": "L0", "url": "about:blank"},
			},
		}, nil

	case "Runtime.evaluate":
		return map[string]interface{}{
			"result": map[string]interface{}{"type": "boolean", "value": true},
		}, nil

	case "Page.navigate":
		loader := f.nextLoader()
		return map[string]string{"frameId": "MAIN", "loaderId": loader}, f.lifecycle(req.SessionID, loader)

	case "Page.reload":
		return empty, f.lifecycle(req.SessionID, f.nextLoader())
	}
	return empty, nil
}

func (f *fakeDevTools) nextLoader() string {
	f.loaders++
	return fmt.Sprintf("L%d", f.loaders)
}

// lifecycle returns the events a document goes through after a
// navigation: an idle event for a child frame first, then load, then
// the main frame idle event.
func (f *fakeDevTools) lifecycle(sessionID, loader string) []devtoolsMessage {
	event := func(frame, name string) devtoolsMessage {
		return devtoolsMessage{
			Method:    "Page.lifecycleEvent",
			SessionID: sessionID,
			Params: mustJSON(map[string]interface{}{
				"frameId":   frame,
				"loaderId":  loader,
				"name":      name,
				"timestamp": 1.5,
			}),
		}
	}
	events := []devtoolsMessage{
		event("CHILD", idleEvent),
		event("MAIN", "load"),
	}
	if f.idle {
		events = append(events, event("MAIN", idleEvent))
	}
	return events
}

func (f *fakeDevTools) sent(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.commands {
		if m == method {
			n++
		}
	}
	return n
}

func targetInfo(id string) map[string]interface{} {
	return map[string]interface{}{
		"targetId":         id,
		"type":             "page",
		"title":            "",
		"url":              "about:blank",
		"attached":         false,
		"canAccessOpener":  false,
		"browserContextId": "DEFAULT",
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func newFakeBrowser(t *testing.T, idle bool) (*fakeDevTools, *Browser) {
	t.Helper()

	f, wsURL := newFakeDevTools(t, idle)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := New(ctx, Config{RemoteURL: wsURL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		within(t, "browser close", func() error { return b.Close() })
	})
	return f, b
}

// within runs fn and fails the test if it does not return in time. Close
// errors from the fake endpoint are only logged.
func within(t *testing.T, name string, fn func() error) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			t.Logf("%s: %v", name, err)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("%s did not return", name)
	}
}

func testSessionConfig(timeout time.Duration) session.Config {
	cfg := session.ResolveConfig("germany")
	cfg.NavigationTimeout = timeout
	return cfg
}

func TestNewSession_CommandsAfterOpen(t *testing.T) {
	f, b := newFakeBrowser(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s, err := b.NewSession(ctx, testSessionConfig(2*time.Second))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer within(t, "session close", s.Close)

	if f.sent("Target.createBrowserContext") != 1 {
		t.Errorf("createBrowserContext sent %d times, want 1", f.sent("Target.createBrowserContext"))
	}
	if f.sent("Emulation.setTimezoneOverride") != 1 {
		t.Errorf("session was not configured before use")
	}

	// The tab must keep answering after the opening call returned.
	found, err := s.Present(ctx, "div.SearchResultCard")
	if err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if !found {
		t.Error("Present() = false, want true")
	}
}

func TestNewSession_CancelledContext(t *testing.T) {
	_, b := newFakeBrowser(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.NewSession(ctx, testSessionConfig(time.Second))
	if err == nil {
		t.Fatal("NewSession() error = nil, want error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("NewSession() error = %v, want context.Canceled", err)
	}
}

func TestNavigate_WaitsForNetworkIdle(t *testing.T) {
	_, b := newFakeBrowser(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := b.NewSession(ctx, testSessionConfig(2*time.Second))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer within(t, "session close", s.Close)

	if err := s.Navigate(ctx, "https://www.mastersportal.com/search/master"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	tb := s.(*tab)
	if tb.frameID != "MAIN" || tb.loaderID != "L1" {
		t.Errorf("settled on frame %q loader %q, want MAIN L1", tb.frameID, tb.loaderID)
	}

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if tb.loaderID != "L2" {
		t.Errorf("after reload loader = %q, want L2", tb.loaderID)
	}
}

func TestNavigate_TimesOutWithoutNetworkIdle(t *testing.T) {
	_, b := newFakeBrowser(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := b.NewSession(ctx, testSessionConfig(300*time.Millisecond))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer within(t, "session close", s.Close)

	start := time.Now()
	err = s.Navigate(ctx, "https://www.mastersportal.com/search/master")
	if err == nil {
		t.Fatal("Navigate() error = nil, want timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Navigate() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Navigate() took %v, want it bounded by the navigation timeout", elapsed)
	}
	if ctx.Err() != nil {
		t.Error("caller context ended, want only the navigation to time out")
	}
}
