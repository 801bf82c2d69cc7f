package audit

import (
	"context"
	"log/slog"
	"sync"

	"pangivault/core/events"
	"pangivault/core/types"
	"pangivault/observability/metrics"
)

const defaultBuffer = 1024

// Sink is an events.Emitter that persists events on a background goroutine.
// Emit never blocks: when the buffer is full the event is dropped and counted.
type Sink struct {
	store  *Store
	logger *slog.Logger
	queue  chan *types.Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewSink starts the background writer.
func NewSink(store *Store, buffer int, logger *slog.Logger) *Sink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		store:  store,
		logger: logger.With(slog.String("component", "audit")),
		queue:  make(chan *types.Event, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit implements events.Emitter.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	var payload *types.Event
	if p, ok := evt.(events.Payload); ok {
		payload = p.Event()
	}
	if payload == nil {
		payload = &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.Vault().IncAuditDropped()
		return
	}
	select {
	case s.queue <- payload:
	default:
		metrics.Vault().IncAuditDropped()
		s.logger.Warn("audit buffer full, event dropped", slog.String("type", payload.Type))
	}
}

// Close stops accepting events and waits until the queue is drained.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for evt := range s.queue {
		if _, err := s.store.Append(context.Background(), evt); err != nil {
			s.logger.Error("persist audit event", slog.String("type", evt.Type), slog.Any("error", err))
		}
	}
}
