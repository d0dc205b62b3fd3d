package trace

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatText   Format = iota // human-readable text
	FormatNDJSON               // newline-delimited JSON
	FormatChrome               // Chrome trace JSON (chrome://tracing)
)

// String returns the string representation of Format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatNDJSON:
		return "ndjson"
	case FormatChrome:
		return "chrome"
	default:
		return "unknown"
	}
}

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	default:
		return FormatText, fmt.Errorf("invalid format: %q (expected: text|ndjson|chrome)", s)
	}
}

// FormatEvent renders a single event. Chrome output is one bare JSON object;
// the enclosing array and separators are the writer's concern.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	default:
		return formatText(ev)
	}
}

func formatNDJSON(ev *Event) []byte {
	type jsonEvent struct {
		Time   string `json:"time"`
		Seq    uint64 `json:"seq"`
		Kind   string `json:"kind"`
		Module string `json:"module"`
		Func   string `json:"func"`
		Depth  int    `json:"depth"`
		Gid    uint64 `json:"gid,omitempty"`
		Class  string `json:"class"`
		Detail string `json:"detail,omitempty"`
	}

	j := jsonEvent{
		Time:   ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:    ev.Seq,
		Kind:   ev.Kind.String(),
		Module: ev.Module,
		Func:   ev.Func,
		Depth:  ev.Depth,
		Gid:    ev.Gid,
		Class:  ev.Class.String(),
		Detail: ev.Detail,
	}

	data, _ := json.Marshal(j)
	data = append(data, '\n')
	return data
}

// formatChrome renders one Chrome trace object. Calls map to "B" (begin),
// returns to "E" (end), marks to instant events. Timestamps are microseconds.
func formatChrome(ev *Event) []byte {
	type chromeArgs struct {
		Seq   uint64 `json:"seq"`
		Depth int    `json:"depth"`
		Class string `json:"class"`
	}
	type chromeEvent struct {
		Name  string     `json:"name"`
		Cat   string     `json:"cat"`
		Phase string     `json:"ph"`
		TS    int64      `json:"ts"`
		PID   int        `json:"pid"`
		TID   uint64     `json:"tid"`
		Scope string     `json:"s,omitempty"`
		Args  chromeArgs `json:"args"`
	}

	c := chromeEvent{
		Name: ev.Name(),
		Cat:  ev.Class.String(),
		TS:   ev.Time.UnixMicro(),
		PID:  1,
		TID:  ev.Gid,
		Args: chromeArgs{Seq: ev.Seq, Depth: ev.Depth, Class: ev.Class.String()},
	}
	switch ev.Kind {
	case KindCall:
		c.Phase = "B"
	case KindReturn:
		c.Phase = "E"
	default:
		c.Phase = "i"
		c.Scope = "t"
	}

	data, _ := json.Marshal(c)
	return data
}

// formatText renders an event as one indented text line.
// Format: [  seq] g<gid> <indent>→/←/• module.func [class] (detail)
func formatText(ev *Event) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%6d] g%d ", ev.Seq, ev.Gid))

	for i := 0; i < ev.Depth; i++ {
		sb.WriteString("  ")
	}

	switch ev.Kind {
	case KindCall:
		sb.WriteString("→ ") // →
	case KindReturn:
		sb.WriteString("← ") // ←
	default:
		sb.WriteString("• ") // •
	}

	sb.WriteString(ev.Name())

	if ev.Kind != KindMark {
		sb.WriteString(" [")
		sb.WriteString(ev.Class.String())
		sb.WriteString("]")
	}

	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}

	sb.WriteString("\n")
	return []byte(sb.String())
}
