// Package testutil provides testing utilities for rabit.
package testutil

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/edmondie/rabit/pkg/cards"
	"github.com/edmondie/rabit/pkg/session"
)

// MockCard describes one card rendered into a mock page.
type MockCard struct {
	ID             int
	ProgramName    string
	University     string
	Location       string
	SecondaryFacts string
	Tuition        string
	Duration       string
}

// MockPage defines how the mock browser renders one URL.
type MockPage struct {
	// HTML is the document served for the URL.
	HTML string

	// NavErrors are returned by successive Navigate calls before the
	// page loads; a nil entry means that attempt succeeds.
	NavErrors []error

	// EmptyLoads is the number of loads (navigation or reload) that
	// render without any element.
	EmptyLoads int

	// ReloadErr is returned by Reload.
	ReloadErr error

	// ExtractErr is returned by ExtractAll.
	ExtractErr error

	// ExtractPanic makes ExtractAll panic with this value.
	ExtractPanic interface{}

	// Block makes Navigate wait until its context ends.
	Block bool
}

// MockBrowser is a scripted session.Browser. Unknown URLs render an
// empty document.
type MockBrowser struct {
	mu    sync.Mutex
	pages map[string]*MockPage
	navs  map[string]int

	// OpenErr is returned by NewSession when set.
	OpenErr error

	// Tracking
	Opened      int
	Closed      int
	Configs     []session.Config
	Navigations []string
}

// NewMockBrowser creates an empty mock browser.
func NewMockBrowser() *MockBrowser {
	return &MockBrowser{
		pages: make(map[string]*MockPage),
		navs:  make(map[string]int),
	}
}

// SetPage scripts the page served at url.
func (b *MockBrowser) SetPage(url string, page MockPage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := page
	b.pages[url] = &p
}

// SetCards serves a results page with the given cards at url.
func (b *MockBrowser) SetCards(url string, cards ...MockCard) {
	b.SetPage(url, MockPage{HTML: CardsHTML(cards...)})
}

// OpenCount returns the number of sessions opened.
func (b *MockBrowser) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Opened
}

// LiveSessions returns opened minus closed sessions.
func (b *MockBrowser) LiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Opened - b.Closed
}

// NavigationCount returns how often url was navigated to.
func (b *MockBrowser) NavigationCount(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.navs[url]
}

// NewSession implements session.Browser.
func (b *MockBrowser) NewSession(ctx context.Context, cfg session.Config) (session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.Opened++
	b.Configs = append(b.Configs, cfg)
	return &mockSession{browser: b}, nil
}

type mockSession struct {
	browser *MockBrowser
	url     string
	page    *MockPage
	loads   int
	closed  bool
}

func (s *mockSession) Navigate(ctx context.Context, target string) error {
	b := s.browser
	b.mu.Lock()
	b.Navigations = append(b.Navigations, target)
	attempt := b.navs[target]
	b.navs[target]++
	page := b.pages[target]
	b.mu.Unlock()

	if page == nil {
		page = &MockPage{}
	}

	if page.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	if attempt < len(page.NavErrors) && page.NavErrors[attempt] != nil {
		return page.NavErrors[attempt]
	}

	s.url = target
	s.page = page
	s.loads++
	return nil
}

func (s *mockSession) Reload(ctx context.Context) error {
	if s.page == nil {
		return fmt.Errorf("reload before navigation")
	}
	if s.page.ReloadErr != nil {
		return s.page.ReloadErr
	}
	s.loads++
	return nil
}

func (s *mockSession) Present(ctx context.Context, selector string) (bool, error) {
	doc, err := s.document()
	if err != nil || doc == nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (s *mockSession) ExtractAll(ctx context.Context, selector string, mapping cards.Mapping) ([]cards.RawCard, error) {
	if s.page != nil && s.page.ExtractPanic != nil {
		panic(s.page.ExtractPanic)
	}
	if s.page != nil && s.page.ExtractErr != nil {
		return nil, s.page.ExtractErr
	}
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []cards.RawCard{}, nil
	}
	base, _ := url.Parse(s.url)
	return cards.Select(doc, selector, base, mapping), nil
}

func (s *mockSession) Close() error {
	if s.closed {
		return fmt.Errorf("session closed twice")
	}
	s.closed = true
	s.browser.mu.Lock()
	s.browser.Closed++
	s.browser.mu.Unlock()
	return nil
}

// document returns the rendered document, or nil while the page is
// still in its scripted empty loads.
func (s *mockSession) document() (*goquery.Document, error) {
	if s.page == nil || s.loads <= s.page.EmptyLoads {
		return nil, nil
	}
	return goquery.NewDocumentFromReader(strings.NewReader(s.page.HTML))
}

// CardsHTML renders a StudyPortals-like results page.
func CardsHTML(cards ...MockCard) string {
	var sb strings.Builder
	sb.WriteString("<html><body><section>")
	for _, c := range cards {
		fmt.Fprintf(&sb, `<a class="SearchStudyCard" href="/studies/%d/program.html">`, c.ID)
		writeText(&sb, "h2", "StudyName", c.ProgramName)
		writeText(&sb, "span", "OrganisationName", c.University)
		writeText(&sb, "span", "OrganisationLocation", c.Location)
		writeText(&sb, "div", "SecondaryFacts", c.SecondaryFacts)
		writeText(&sb, "div", "TuitionValue", c.Tuition)
		writeText(&sb, "div", "DurationValue", c.Duration)
		sb.WriteString("</a>")
	}
	sb.WriteString("</section></body></html>")
	return sb.String()
}

func writeText(sb *strings.Builder, tag, class, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(sb, `<%s class="%s">%s</%s>`, tag, class, html.EscapeString(text), tag)
}

// SampleCards returns n distinct cards.
func SampleCards(n int) []MockCard {
	out := make([]MockCard, n)
	for i := range out {
		out[i] = MockCard{
			ID:             1000 + i,
			ProgramName:    fmt.Sprintf("Program %d", i+1),
			University:     fmt.Sprintf("University %d", i+1),
			Location:       "Boston, United States",
			SecondaryFacts: "M.Sc. / Full-time / On Campus",
			Tuition:        "30,000 USD / year",
			Duration:       "24 months",
		}
	}
	return out
}
