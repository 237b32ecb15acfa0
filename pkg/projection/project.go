package projection

import (
	"regexp"

	"github.com/edmondie/rabit/pkg/cards"
)

var studyIDPattern = regexp.MustCompile(`studies/(\d+)`)

// ExtractID returns the numeric study id captured from href, or nil when
// href carries none.
func ExtractID(href *string) *string {
	if href == nil {
		return nil
	}
	m := studyIDPattern.FindStringSubmatch(*href)
	if m == nil {
		return nil
	}
	id := m[1]
	return &id
}

// Project builds the entry for card holding country plus exactly the
// requested fields. Unknown names in fields are ignored; keys follow
// AllowedFields order regardless of request order.
func Project(card cards.RawCard, fields []string, country string) Entry {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	c := country
	entry := make(Entry, 0, len(fields)+1)
	entry = append(entry, Pair{Key: FieldCountry, Value: &c})

	for _, f := range AllowedFields {
		if !want[f] {
			continue
		}
		entry = append(entry, Pair{Key: f, Value: value(card, f)})
	}
	return entry
}

// ProjectAll projects every card in order.
func ProjectAll(raw []cards.RawCard, fields []string, country string) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, card := range raw {
		out = append(out, Project(card, fields, country))
	}
	return out
}

func value(card cards.RawCard, field string) *string {
	switch field {
	case FieldID:
		return ExtractID(card.Href)
	case FieldProgramName:
		return clone(card.ProgramName)
	case FieldUniversity:
		return clone(card.University)
	case FieldCityCountry:
		return clone(card.CityCountry)
	case FieldStudyPortalsLink:
		return clone(card.Href)
	case FieldDegreeLevel:
		return clone(card.DegreeLevel)
	case FieldStudyMode:
		return clone(card.StudyMode)
	case FieldTuitionFee:
		return clone(card.TuitionFee)
	case FieldDuration:
		return clone(card.Duration)
	default:
		return nil
	}
}

// clone detaches entries from the card so later mutation of one never
// shows up in the other.
func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
