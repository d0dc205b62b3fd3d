package trace

import (
	"io"
	"sync"
)

// RingSink keeps the last N events in memory (circular buffer). It is the
// right sink when only the tail of a long run matters, such as dumping
// context after a crash.
type RingSink struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	head     int  // next write position
	full     bool // has wrapped around
}

// NewRingSink creates a RingSink with the given capacity (default 4096).
func NewRingSink(capacity int) *RingSink {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingSink{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Emit stores a copy of the event, evicting the oldest when full.
func (s *RingSink) Emit(ev *Event) {
	if s == nil || ev == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[s.head] = *ev
	s.head = (s.head + 1) % s.capacity
	if s.head == 0 {
		s.full = true
	}
}

// Snapshot returns a copy of all stored events in recording order.
func (s *RingSink) Snapshot() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		result := make([]Event, s.head)
		copy(result, s.events[:s.head])
		return result
	}

	result := make([]Event, s.capacity)
	copy(result, s.events[s.head:])
	copy(result[s.capacity-s.head:], s.events[:s.head])
	return result
}

// Dump writes the stored events to w in the given format. Chrome output is
// wrapped in a complete traceEvents document.
func (s *RingSink) Dump(w io.Writer, format Format) error {
	events := s.Snapshot()

	if format == FormatChrome {
		if _, err := w.Write([]byte("{\"traceEvents\":[\n")); err != nil {
			return err
		}
		for i := range events {
			if i > 0 {
				if _, err := w.Write([]byte(",\n")); err != nil {
					return err
				}
			}
			if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
				return err
			}
		}
		_, err := w.Write([]byte("\n]}\n"))
		return err
	}

	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op for RingSink since everything is in memory.
func (s *RingSink) Flush() error { return nil }

// Close is a no-op for RingSink.
func (s *RingSink) Close() error { return nil }
