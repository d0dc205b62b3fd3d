// Package trace defines the frame-event model and the sinks that observe a
// tracing session as it runs.
//
// An Event is one observed call, return, or mark. Events are immutable once
// recorded; the recording session assigns strictly increasing sequence
// numbers starting at 1.
//
// # Sinks
//
// Sinks receive events live, in addition to the session retaining its own
// event sequence. They never gate or mutate what the session keeps.
//
//   - Nop: zero-overhead sink when streaming is disabled
//   - StreamSink: immediate formatted write to an io.Writer
//   - RingSink: circular buffer holding the last N events
//   - MultiSink: fans out to several sinks
//   - CallbackSink: invokes a function per event
//
// # Formats
//
// Events render as human-readable text, newline-delimited JSON, or Chrome
// trace JSON (load the latter in chrome://tracing or Perfetto).
package trace
