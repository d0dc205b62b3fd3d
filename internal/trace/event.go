package trace

import (
	"fmt"
	"time"

	"tracerlib/internal/classify"
)

// Kind represents the type of frame event.
type Kind uint8

const (
	// KindCall marks entry into a function.
	KindCall Kind = iota + 1
	// KindReturn marks a normal exit from a function.
	KindReturn
	// KindMark is an instant annotation; graph assembly ignores it.
	KindMark
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	case KindMark:
		return "mark"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "call":
		return KindCall, nil
	case "return":
		return KindReturn, nil
	case "mark":
		return KindMark, nil
	default:
		return 0, fmt.Errorf("invalid event kind: %q (expected: call|return|mark)", s)
	}
}

// Event is one observed frame event. Once recorded it is never modified.
type Event struct {
	Seq    uint64         // per-session sequence number, 1-based, strictly increasing
	Time   time.Time      // wall-clock timestamp (carries Go's monotonic reading)
	Kind   Kind           // call, return, or mark
	Module string         // import path of the frame's package
	Func   string         // function identifier within the module
	Depth  int            // nesting depth within the goroutine lane, root = 0
	Gid    uint64         // goroutine the event was observed on
	Class  classify.Class // origin classification of Module
	Detail string         // optional annotation, marks only
}

// Name returns the qualified "module.func" identifier.
func (ev *Event) Name() string {
	if ev.Module == "" {
		return ev.Func
	}
	return ev.Module + "." + ev.Func
}
