package session

import (
	"fmt"
	"time"

	"tracerlib/internal/classify"
	"tracerlib/internal/trace"
)

// Filter restricts which frames are retained by a session.
type Filter uint8

const (
	// KeepAll retains every observed frame.
	KeepAll Filter = iota
	// KeepUser retains only user-classified frames. Suppressed frames still
	// consume sequence numbers, so call-order gaps stay visible, and their
	// nearest recorded ancestor's elision count is incremented.
	KeepUser
)

// String returns the string representation of Filter.
func (f Filter) String() string {
	switch f {
	case KeepAll:
		return "all"
	case KeepUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseFilter converts a string to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "all", "":
		return KeepAll, nil
	case "user":
		return KeepUser, nil
	default:
		return KeepAll, fmt.Errorf("invalid filter: %q (expected: all|user)", s)
	}
}

// Config holds per-session recording options. The zero value records
// everything with no depth cap and no output sink.
type Config struct {
	// MaxDepth caps recorded nesting depth per goroutine; 0 means unlimited.
	// Calls beyond the cap are suppressed and counted.
	MaxDepth int

	// Filter selects which frame classes to retain.
	Filter Filter

	// Overrides force module paths (and their subpaths) to a class
	// regardless of the built-in reference set.
	Overrides map[string]classify.Class

	// Sink additionally receives every retained event live. The session
	// retains events regardless of the sink.
	Sink trace.Sink

	// Logger receives the tracer's own diagnostics.
	Logger Logger

	// Clock supplies event timestamps. Defaults to time.Now.
	Clock func() time.Time

	// Heartbeat, when positive, emits a liveness mark at this interval for
	// the lifetime of the session.
	Heartbeat time.Duration
}

// normalized fills in defaults for the optional collaborators.
func (c Config) normalized() Config {
	if c.Sink == nil {
		c.Sink = trace.Nop
	}
	if c.Logger == nil {
		c.Logger = NopLogger
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
