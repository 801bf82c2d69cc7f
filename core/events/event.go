package events

import (
	"sync"

	"pangivault/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves in the
// broadcastable key/value form.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. audit sinks, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events until the surrounding unit of work decides whether they
// happened. Flush forwards them in emission order; Discard drops them.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Events returns a snapshot of the buffered events.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Flush forwards buffered events to dst and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	if b == nil {
		return
	}
	b.mu.Lock()
	pending := b.events
	b.events = nil
	b.mu.Unlock()
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Discard drops every buffered event.
func (b *Buffer) Discard() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Fanout emits every event to each of its targets in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, target := range f {
		if target != nil {
			target.Emit(evt)
		}
	}
}
