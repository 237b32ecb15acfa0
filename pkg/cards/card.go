// Package cards maps the DOM of a StudyPortals search results page to raw
// card records. It holds no retry or session logic.
package cards

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors used on search result pages.
const (
	CardSelector           = "a.SearchStudyCard"
	programNameSelector    = "h2.StudyName"
	universitySelector     = ".OrganisationName"
	locationSelector       = ".OrganisationLocation"
	secondaryFactsSelector = ".SecondaryFacts"
	tuitionSelector        = ".TuitionValue, .Fee, .Price, .Tuition"
	durationSelector       = ".DurationValue, .Duration"
)

// RawCard is one listing card as found on the page. Every field is
// optional. Cards live only as long as one page extraction.
type RawCard struct {
	Href        *string `json:"href"`
	ProgramName *string `json:"programName"`
	University  *string `json:"university"`
	CityCountry *string `json:"city_country"`
	DegreeLevel *string `json:"degreeLevel"`
	StudyMode   *string `json:"studyMode"`
	TuitionFee  *string `json:"tuitionFee"`
	Duration    *string `json:"duration"`
}

// Mapping turns one card element into a RawCard. base is the URL of the
// page the element came from and is used to resolve relative links.
type Mapping func(sel *goquery.Selection, base *url.URL) RawCard

// MapCard is the Mapping for StudyPortals search cards.
func MapCard(sel *goquery.Selection, base *url.URL) RawCard {
	card := RawCard{
		Href:        resolveHref(sel, base),
		ProgramName: text(sel, programNameSelector),
		University:  text(sel, universitySelector),
		CityCountry: text(sel, locationSelector),
		TuitionFee:  text(sel, tuitionSelector),
		Duration:    text(sel, durationSelector),
	}
	card.DegreeLevel, card.StudyMode = SplitSecondaryFacts(text(sel, secondaryFactsSelector))
	return card
}

// SplitSecondaryFacts splits a combined "degree / mode / ..." label. The
// first segment is the degree level, the remaining segments joined with
// " / " are the study mode. Both are nil when facts is nil. An empty
// degree segment is nil; the study mode is kept as soon as a separator
// exists, even when it is empty.
func SplitSecondaryFacts(facts *string) (degreeLevel, studyMode *string) {
	if facts == nil {
		return nil, nil
	}
	parts := strings.Split(*facts, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	degreeLevel = nonEmpty(parts[0])
	if len(parts) > 1 {
		mode := strings.Join(parts[1:], " / ")
		studyMode = &mode
	}
	return degreeLevel, studyMode
}

// Select applies mapping to every element of doc matching selector.
func Select(doc *goquery.Document, selector string, base *url.URL, mapping Mapping) []RawCard {
	found := doc.Find(selector)
	out := make([]RawCard, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, mapping(sel, base))
	})
	return out
}

// Parse reads an HTML document and maps every card in it with MapCard.
func Parse(r io.Reader, base *url.URL) ([]RawCard, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return Select(doc, CardSelector, base, MapCard), nil
}

// text returns the trimmed text of the first match of selector inside
// sel, or nil when nothing matches or the text is blank.
func text(sel *goquery.Selection, selector string) *string {
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	return nonEmpty(strings.TrimSpace(found.Text()))
}

func resolveHref(sel *goquery.Selection, base *url.URL) *string {
	href, ok := sel.Attr("href")
	if !ok {
		return nil
	}
	href = strings.TrimSpace(href)
	if base != nil {
		if ref, err := url.Parse(href); err == nil {
			href = base.ResolveReference(ref).String()
		}
	}
	return nonEmpty(href)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
