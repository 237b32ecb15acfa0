package cards

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func str(s string) *string { return &s }

const searchPage = `<!doctype html>
<html><body>
<section class="SearchResults">
  <a class="SearchStudyCard" href="/studies/482910/data-science.html">
    <h2 class="StudyName"> Data Science </h2>
    <span class="OrganisationName">Technical University of Munich</span>
    <span class="OrganisationLocation">Munich, Germany</span>
    <div class="SecondaryFacts">M.Sc. / Full-time / On Campus</div>
    <div class="TuitionValue">296 EUR / year</div>
    <div class="DurationValue">24 months</div>
  </a>
  <a class="SearchStudyCard" href="https://www.masterportal.com/studies/77/mba.html">
    <h2 class="StudyName">MBA</h2>
    <div class="SecondaryFacts">M.B.A.</div>
    <span class="Price">12,000 USD</span>
    <span class="Duration">12 months</span>
  </a>
  <a class="SearchStudyCard">
    <h2 class="StudyName">   </h2>
  </a>
</section>
<a class="OtherCard" href="/studies/1/ignored.html"></a>
</body></html>`

func TestParse(t *testing.T) {
	base, _ := url.Parse("https://www.masterportal.com/search/master/germany?page=1")

	got, err := Parse(strings.NewReader(searchPage), base)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []RawCard{
		{
			Href:        str("https://www.masterportal.com/studies/482910/data-science.html"),
			ProgramName: str("Data Science"),
			University:  str("Technical University of Munich"),
			CityCountry: str("Munich, Germany"),
			DegreeLevel: str("M.Sc."),
			StudyMode:   str("Full-time / On Campus"),
			TuitionFee:  str("296 EUR / year"),
			Duration:    str("24 months"),
		},
		{
			Href:        str("https://www.masterportal.com/studies/77/mba.html"),
			ProgramName: str("MBA"),
			DegreeLevel: str("M.B.A."),
			TuitionFee:  str("12,000 USD"),
			Duration:    str("12 months"),
		},
		{},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NoCards(t *testing.T) {
	got, err := Parse(strings.NewReader("<html><body><p>No results</p></body></html>"), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no cards, got %d", len(got))
	}
}

func TestParse_RelativeHrefWithoutBase(t *testing.T) {
	got, err := Parse(strings.NewReader(`<a class="SearchStudyCard" href="/studies/5/x.html"></a>`), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(got) != 1 || got[0].Href == nil || *got[0].Href != "/studies/5/x.html" {
		t.Errorf("Expected href kept as-is, got %+v", got)
	}
}

func TestSplitSecondaryFacts(t *testing.T) {
	tests := []struct {
		name       string
		facts      *string
		wantDegree *string
		wantMode   *string
	}{
		{
			name:       "absent",
			facts:      nil,
			wantDegree: nil,
			wantMode:   nil,
		},
		{
			name:       "degree only",
			facts:      str("Ph.D."),
			wantDegree: str("Ph.D."),
			wantMode:   nil,
		},
		{
			name:       "degree and mode",
			facts:      str("B.Sc. / Full-time"),
			wantDegree: str("B.Sc."),
			wantMode:   str("Full-time"),
		},
		{
			name:       "multiple modes rejoined",
			facts:      str("M.B.A./Part-time/  Online"),
			wantDegree: str("M.B.A."),
			wantMode:   str("Part-time / Online"),
		},
		{
			name:       "empty first segment",
			facts:      str(" / Online"),
			wantDegree: nil,
			wantMode:   str("Online"),
		},
		{
			name:       "trailing separator keeps empty mode",
			facts:      str("MSc /"),
			wantDegree: str("MSc"),
			wantMode:   str(""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			degree, mode := SplitSecondaryFacts(tt.facts)
			if diff := cmp.Diff(tt.wantDegree, degree); diff != "" {
				t.Errorf("degreeLevel mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMode, mode); diff != "" {
				t.Errorf("studyMode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
