package trace

// Sink receives events as they are recorded.
type Sink interface {
	// Emit observes one event. Must be goroutine-safe and must treat the
	// event as read-only.
	Emit(ev *Event)

	// Flush ensures all buffered output is written.
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// nopSink discards everything for zero overhead when streaming is disabled.
type nopSink struct{}

func (nopSink) Emit(*Event)  {}
func (nopSink) Flush() error { return nil }
func (nopSink) Close() error { return nil }

// Nop is the package-level singleton no-op sink.
var Nop Sink = nopSink{}

// CallbackSink invokes a function for every emitted event. The function is
// called synchronously from the recording path and must be goroutine-safe.
type CallbackSink struct {
	fn func(Event)
}

// NewCallbackSink wraps fn as a Sink. A nil fn yields a no-op sink.
func NewCallbackSink(fn func(Event)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

// Emit invokes the callback with a copy of the event.
func (s *CallbackSink) Emit(ev *Event) {
	if s == nil || s.fn == nil || ev == nil {
		return
	}
	s.fn(*ev)
}

// Flush is a no-op for CallbackSink.
func (s *CallbackSink) Flush() error { return nil }

// Close is a no-op for CallbackSink.
func (s *CallbackSink) Close() error { return nil }
