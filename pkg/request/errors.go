package request

import "fmt"

// Validation failure reasons.
const (
	ReasonMissingField      = "missing required field"
	ReasonInvalidFields     = "invalid fields"
	ReasonUnsupportedDegree = "unsupported degree"
	ReasonInvalidRange      = "invalid range"
)

// ValidationError reports a bad, missing or unsupported request field.
// Reason is one of the Reason constants; Detail narrows it down.
type ValidationError struct {
	Reason string
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return e.Reason
}

// Is matches another *ValidationError with the same Reason, so callers
// can test errors.Is(err, &ValidationError{Reason: ReasonInvalidFields}).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}
