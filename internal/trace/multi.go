package trace

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink emitting to all provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit sends the event to every underlying sink.
func (s *MultiSink) Emit(ev *Event) {
	for _, sink := range s.sinks {
		sink.Emit(ev)
	}
}

// Flush flushes all underlying sinks, returning the first error.
func (s *MultiSink) Flush() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all underlying sinks, returning the first error.
func (s *MultiSink) Close() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
