package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSEWriter writes events as server-sent event frames
// ("event: <kind>\ndata: <json>\n\n"), flushing after every frame.
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter wraps w. When w implements http.Flusher each frame is
// flushed as soon as it is written.
func NewSSEWriter(w io.Writer) *SSEWriter {
	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

// SetHeaders prepares an HTTP response for an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// Emit implements EventSink.
func (s *SSEWriter) Emit(kind Kind, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		s.closed = true
		return fmt.Errorf("write %s event: %w", kind, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}

	if kind.Terminal() {
		s.closed = true
	}
	return nil
}

// Closed reports whether the stream accepts no more events.
func (s *SSEWriter) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
