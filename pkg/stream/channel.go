package stream

import (
	"context"
	"sync"
)

// ChannelSink delivers events on a channel. Emit blocks until the event is
// received or ctx ends. The channel is closed after a terminal event or
// once ctx ended during an Emit.
type ChannelSink struct {
	ctx    context.Context
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChannelSink creates a sink with the given channel buffer.
func NewChannelSink(ctx context.Context, buffer int) *ChannelSink {
	return &ChannelSink{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

// Emit implements EventSink.
func (c *ChannelSink) Emit(kind Kind, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.ch <- Event{Kind: kind, Payload: payload}:
	case <-c.ctx.Done():
		c.closed = true
		close(c.ch)
		return c.ctx.Err()
	}

	if kind.Terminal() {
		c.closed = true
		close(c.ch)
	}
	return nil
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventSink.
func (r *Recorder) Emit(kind Kind, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
