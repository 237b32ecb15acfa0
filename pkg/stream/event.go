// Package stream carries ordered, typed scrape events from the pipeline
// to a transport.
package stream

import (
	"errors"

	"github.com/edmondie/rabit/pkg/projection"
)

// Kind is the type tag of an event.
type Kind string

// Event kinds.
const (
	KindProgress Kind = "progress"
	KindEntry    Kind = "entry"
	KindWarning  Kind = "warning"
	KindError    Kind = "error"
	KindDone     Kind = "done"
)

// Terminal reports whether no event may follow one of this kind.
func (k Kind) Terminal() bool {
	return k == KindDone || k == KindError
}

// ErrClosed is returned by sinks after a terminal event was emitted.
var ErrClosed = errors.New("stream closed")

// Progress is the payload of a progress event.
type Progress struct {
	Message string `json:"message"`
}

// EntryPayload is the payload of an entry event.
type EntryPayload struct {
	Entry projection.Entry `json:"entry"`
}

// Warning is the payload of a warning event.
type Warning struct {
	Message string `json:"message"`
}

// Error is the payload of an error event.
type Error struct {
	Message string `json:"message"`
}

// Done is the payload of the final event of a successful scrape.
type Done struct {
	Count          int                `json:"count"`
	Results        []projection.Entry `json:"results"`
	ElapsedSeconds float64            `json:"elapsedSeconds"`
}

// Event is one emitted event.
type Event struct {
	Kind    Kind
	Payload interface{}
}

// EventSink receives events in emission order. Emit returns an error
// when the event could not be delivered; callers stop emitting then.
type EventSink interface {
	Emit(kind Kind, payload interface{}) error
}
