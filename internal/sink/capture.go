package sink

import (
	"sync"
	"time"

	"github.com/fennwick/sigtap/core/signal"
)

// CaptureSink records emitted events in memory. Intended for tests and
// in-process inspection.
type CaptureSink struct {
	mu     sync.Mutex
	events []signal.Event
}

// NewCaptureSink constructs an empty capture sink.
func NewCaptureSink() *CaptureSink {
	return new(CaptureSink)
}

// Emit appends one event to the capture buffer.
func (s *CaptureSink) Emit(kind signal.Kind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, signal.Event{
		Kind:     kind,
		Payload:  text,
		RaisedAt: time.Now().UTC(),
	})
}

// Events returns a copy of everything captured so far.
func (s *CaptureSink) Events() []signal.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]signal.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Reset discards all captured events.
func (s *CaptureSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
