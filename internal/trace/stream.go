package trace

import (
	"io"
	"sync"
)

// StreamSink writes events immediately to an io.Writer.
type StreamSink struct {
	mu         sync.Mutex
	w          io.Writer
	format     Format
	firstEvent bool // for Chrome format comma handling
	closed     bool
}

// NewStreamSink creates a StreamSink writing in the given format. For Chrome
// output the enclosing array header is written up front.
func NewStreamSink(w io.Writer, format Format) *StreamSink {
	s := &StreamSink{
		w:          w,
		format:     format,
		firstEvent: true,
	}
	if format == FormatChrome {
		// Best-effort write; tracing output must not fail the traced program.
		_, _ = s.w.Write([]byte("{\"traceEvents\":[\n"))
	}
	return s
}

// Emit writes one event. Write errors are swallowed: the tracer observes the
// program, it never fails it.
func (s *StreamSink) Emit(ev *Event) {
	if s == nil || ev == nil {
		return
	}
	data := FormatEvent(ev, s.format)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.format == FormatChrome {
		if !s.firstEvent {
			_, _ = s.w.Write([]byte(",\n"))
		}
		s.firstEvent = false
	}

	_, _ = s.w.Write(data)
}

// Flush forwards to the writer when it supports flushing.
func (s *StreamSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flusher, ok := s.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close terminates the output (writing the Chrome footer if needed) and
// closes the writer when it implements io.Closer.
func (s *StreamSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		if s.format == FormatChrome {
			_, _ = s.w.Write([]byte("\n]}\n"))
		}
	}
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		return err
	}
	if closer, ok := s.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
