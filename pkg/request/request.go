// Package request validates and normalizes scrape requests before any
// browser session is opened.
package request

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/edmondie/rabit/pkg/projection"
)

// ScrapeRequest is the JSON body of POST /scrape.
type ScrapeRequest struct {
	Country string   `json:"country"`
	Degree  string   `json:"degree"`
	Fields  []string `json:"fields"`
	Range   []int    `json:"range,omitempty"`
}

// PageRange is an inclusive page interval. A nil End means unbounded.
type PageRange struct {
	Start int
	End   *int
}

// Includes reports whether page lies inside the range.
func (r PageRange) Includes(page int) bool {
	if page < r.Start {
		return false
	}
	return r.End == nil || page <= *r.End
}

// String renders the range as "start-end" or "start-".
func (r PageRange) String() string {
	if r.End == nil {
		return fmt.Sprintf("%d-", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, *r.End)
}

// Validated is a request that passed validation.
type Validated struct {
	Country string
	Degree  string
	Portal  string
	Fields  []string
	Range   PageRange
}

var portals = map[string]string{
	"msc": "master",
	"bsc": "bachelor",
	"phd": "phd",
}

// PortalFor maps a degree (case-insensitive) to its portal identifier.
func PortalFor(degree string) (string, bool) {
	portal, ok := portals[strings.ToLower(strings.TrimSpace(degree))]
	return portal, ok
}

// ParseRange applies the range defaults: a missing or non-positive start
// becomes 1, a missing or non-positive end means unbounded.
func ParseRange(raw []int) PageRange {
	r := PageRange{Start: 1}
	if len(raw) > 0 && raw[0] > 0 {
		r.Start = raw[0]
	}
	if len(raw) > 1 && raw[1] > 0 {
		end := raw[1]
		r.End = &end
	}
	return r
}

// Validate checks req and returns its normalized form. It has no side
// effects.
func Validate(req ScrapeRequest) (Validated, error) {
	country := strings.TrimSpace(req.Country)
	degree := strings.TrimSpace(req.Degree)
	if country == "" || degree == "" {
		return Validated{}, &ValidationError{
			Reason: ReasonMissingField,
			Detail: "country and degree are required",
		}
	}

	if len(req.Fields) == 0 {
		return Validated{}, &ValidationError{
			Reason: ReasonInvalidFields,
			Detail: "fields must be a non-empty array",
		}
	}

	portal, ok := PortalFor(degree)
	if !ok {
		return Validated{}, &ValidationError{
			Reason: ReasonUnsupportedDegree,
			Detail: req.Degree,
		}
	}

	fields := projection.FilterFields(req.Fields)
	if len(fields) == 0 {
		return Validated{}, &ValidationError{
			Reason: ReasonInvalidFields,
			Detail: "no valid fields requested",
		}
	}

	pages := ParseRange(req.Range)
	if pages.End != nil && pages.Start > *pages.End {
		return Validated{}, &ValidationError{
			Reason: ReasonInvalidRange,
			Detail: fmt.Sprintf("start page %d is after end page %d", pages.Start, *pages.End),
		}
	}

	return Validated{
		Country: country,
		Degree:  degree,
		Portal:  portal,
		Fields:  fields,
		Range:   pages,
	}, nil
}

// ListURL builds the search results URL for one page of a portal.
func ListURL(portal, country string, page int) string {
	return fmt.Sprintf("%s/search/%s/%s?page=%d",
		Origin(portal), portal, url.PathEscape(strings.ToLower(country)), page)
}

// Origin returns the site origin serving portal.
func Origin(portal string) string {
	return "https://www." + portal + "sportal.com"
}

// PortalOrigins lists the origins of every known portal.
func PortalOrigins() []string {
	return []string{Origin("master"), Origin("bachelor"), Origin("phd")}
}
