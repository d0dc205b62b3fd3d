package session

import (
	"errors"
	"sync"
	"time"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/trace"
)

// ErrActiveSession is returned when a snapshot is requested from a session
// that has not been finalized yet.
var ErrActiveSession = errors.New("session: still active, not finalized")

// Counters aggregates the anomalies and suppressions a session observed.
type Counters struct {
	// Dropped counts calls suppressed by the depth cap.
	Dropped uint64
	// Filtered counts events suppressed by the inclusion filter.
	Filtered uint64
	// StrayReturns counts returns with no matching open call.
	StrayReturns uint64
	// Realigned counts nodes closed as incomplete during stack realignment.
	Realigned uint64
}

// Session is the record of one bracketed tracing scope. It is mutated
// exclusively by its Recorder while active; after finalization it is
// read-only and safe for concurrent readers.
type Session struct {
	mu sync.Mutex

	id        string
	startedAt time.Time
	stoppedAt time.Time
	cfg       Config

	seq      uint64
	events   []trace.Event
	demux    *callgraph.Demux
	counters Counters

	panicked  bool
	finalized bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the time tracing started.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// StoppedAt returns the time tracing stopped; zero while active.
func (s *Session) StoppedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stoppedAt
}

// Wall returns the wall time between start and stop; zero while active.
func (s *Session) Wall() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stoppedAt.IsZero() {
		return 0
	}
	return s.stoppedAt.Sub(s.startedAt)
}

// Finalized reports whether the session has been closed for mutation.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// Panicked reports whether the traced region ended by panicking.
func (s *Session) Panicked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panicked
}

// Events returns a copy of the retained event sequence in recording order.
func (s *Session) Events() []trace.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventCount returns the number of retained events.
func (s *Session) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Roots returns the call forest, merged across goroutine lanes and ordered
// by first call sequence.
func (s *Session) Roots() []*callgraph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demux.Roots()
}

// Gids returns the goroutine IDs observed, in first-seen order.
func (s *Session) Gids() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demux.Gids()
}

// Counters returns the session's anomaly and suppression counts.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countersLocked()
}

func (s *Session) countersLocked() Counters {
	c := s.counters
	c.StrayReturns = uint64(s.demux.StrayReturns())
	c.Realigned = uint64(s.demux.Realigned())
	return c
}

// Config returns the configuration snapshot the session records under.
func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) setPanicked() {
	s.mu.Lock()
	s.panicked = true
	s.mu.Unlock()
}

// finalize closes the session for mutation, force-closing any nodes still
// open on per-goroutine stacks.
func (s *Session) finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.stoppedAt = s.cfg.Clock()
	s.demux.CloseOpen(s.panicked)
	s.counters = s.countersLocked()
	s.finalized = true
}

// Snapshot is the serializable form of a finalized session.
type Snapshot struct {
	ID        string
	StartedAt time.Time
	StoppedAt time.Time
	Panicked  bool

	MaxDepth  int
	Filter    Filter
	Overrides map[string]classify.Class

	Dropped  uint64
	Filtered uint64

	Events []trace.Event
}

// Snapshot captures the finalized session for persistence. Stray-return and
// realignment counts are not carried: they are derivable from the event
// sequence and recomputed on Restore.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finalized {
		return Snapshot{}, ErrActiveSession
	}
	events := make([]trace.Event, len(s.events))
	copy(events, s.events)
	return Snapshot{
		ID:        s.id,
		StartedAt: s.startedAt,
		StoppedAt: s.stoppedAt,
		Panicked:  s.panicked,
		MaxDepth:  s.cfg.MaxDepth,
		Filter:    s.cfg.Filter,
		Overrides: s.cfg.Overrides,
		Dropped:   s.counters.Dropped,
		Filtered:  s.counters.Filtered,
		Events:    events,
	}, nil
}

// Restore rebuilds a finalized session from a snapshot. The call forest is
// reconstructed from the event sequence and carries the same marks as the
// live-built one.
func Restore(snap Snapshot) *Session {
	s := &Session{
		id:        snap.ID,
		startedAt: snap.StartedAt,
		stoppedAt: snap.StoppedAt,
		panicked:  snap.Panicked,
		cfg: Config{
			MaxDepth:  snap.MaxDepth,
			Filter:    snap.Filter,
			Overrides: snap.Overrides,
		}.normalized(),
		events:    snap.Events,
		demux:     callgraph.Build(snap.Events, snap.Panicked),
		finalized: true,
	}
	s.counters.Dropped = snap.Dropped
	s.counters.Filtered = snap.Filtered
	s.counters = s.countersLocked()
	return s
}
