package request

import (
	"encoding/json"
)

// UnmarshalJSON decodes a request body leniently. Only a body that is not
// a JSON object fails; members of the wrong type decode to their zero
// value so Validate reports them with the proper reason.
func (r *ScrapeRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = ScrapeRequest{
		Country: decodeString(raw["country"]),
		Degree:  decodeString(raw["degree"]),
		Fields:  decodeStrings(raw["fields"]),
		Range:   decodeInts(raw["range"]),
	}
	return nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// decodeStrings keeps the string elements of an array. Anything other
// than an array yields nil; non-string elements are skipped.
func decodeStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// decodeInts reads an array of numbers. Non-numeric elements become 0,
// which ParseRange treats as unset.
func decodeInts(raw json.RawMessage) []int {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]int, len(items))
	for i, item := range items {
		var f float64
		if json.Unmarshal(item, &f) == nil {
			out[i] = int(f)
		}
	}
	return out
}
