// Package projection maps raw study cards to the subset of fields a
// caller asked for.
package projection

// Field names accepted in a scrape request.
const (
	FieldID               = "id"
	FieldProgramName      = "programName"
	FieldUniversity       = "university"
	FieldCityCountry      = "city_country"
	FieldStudyPortalsLink = "studyPortalsLink"
	FieldDegreeLevel      = "degreeLevel"
	FieldStudyMode        = "studyMode"
	FieldTuitionFee       = "tuitionFee"
	FieldDuration         = "duration"

	// FieldCountry is always present in an entry; it cannot be requested.
	FieldCountry = "country"
)

// AllowedFields is the allow-list in projection order.
var AllowedFields = []string{
	FieldID,
	FieldProgramName,
	FieldUniversity,
	FieldCityCountry,
	FieldStudyPortalsLink,
	FieldDegreeLevel,
	FieldStudyMode,
	FieldTuitionFee,
	FieldDuration,
}

var allowed = func() map[string]int {
	m := make(map[string]int, len(AllowedFields))
	for i, f := range AllowedFields {
		m[f] = i
	}
	return m
}()

// IsAllowed reports whether name is on the allow-list.
func IsAllowed(name string) bool {
	_, ok := allowed[name]
	return ok
}

// FilterFields keeps the allowed names of requested, dropping duplicates
// and preserving first-seen order.
func FilterFields(requested []string) []string {
	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, f := range requested {
		if !IsAllowed(f) || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
