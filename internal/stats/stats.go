// Package stats aggregates finalized trace sessions into per-function
// reports.
package stats

import (
	"sort"
	"time"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/session"
	"tracerlib/internal/trace"
)

// Row is one function's aggregate across the collected sessions.
type Row struct {
	Module string
	Func   string
	Class  classify.Class

	// Calls counts completed and open invocations.
	Calls uint64
	// Cum is wall time spent in the function including callees. Open
	// invocations contribute nothing.
	Cum time.Duration
	// Self is Cum minus time spent in recorded callees.
	Self time.Duration
}

func (r *Row) name() string {
	if r.Module == "" {
		return r.Func
	}
	return r.Module + "." + r.Func
}

// Report summarizes one or more sessions.
type Report struct {
	Sessions int
	Events   int
	Calls    uint64
	ByClass  map[classify.Class]uint64
	MaxDepth int
	Wall     time.Duration

	Dropped      uint64
	Filtered     uint64
	StrayReturns uint64
	Realigned    uint64

	// Rows sorted by cumulative time descending.
	Rows []Row
}

type rowKey struct {
	module string
	fn     string
}

// Collect aggregates a finalized session.
func Collect(s *session.Session) Report {
	r := Report{
		Sessions: 1,
		ByClass:  make(map[classify.Class]uint64),
		Wall:     s.Wall(),
	}

	events := s.Events()
	r.Events = len(events)
	for i := range events {
		if events[i].Kind != trace.KindCall {
			continue
		}
		if events[i].Depth > r.MaxDepth {
			r.MaxDepth = events[i].Depth
		}
	}

	c := s.Counters()
	r.Dropped = c.Dropped
	r.Filtered = c.Filtered
	r.StrayReturns = c.StrayReturns
	r.Realigned = c.Realigned

	rows := make(map[rowKey]*Row)
	for _, root := range s.Roots() {
		root.Walk(func(n *callgraph.Node) {
			r.Calls++
			r.ByClass[n.Class]++

			key := rowKey{module: n.Module, fn: n.Func}
			row, ok := rows[key]
			if !ok {
				row = &Row{Module: n.Module, Func: n.Func, Class: n.Class}
				rows[key] = row
			}
			row.Calls++

			cum := n.Duration()
			row.Cum += cum
			self := cum
			for _, child := range n.Children {
				self -= child.Duration()
			}
			if self > 0 {
				row.Self += self
			}
		})
	}

	r.Rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		r.Rows = append(r.Rows, *row)
	}
	sortRows(r.Rows)
	return r
}

// Merge combines reports into one. Rows for the same function are summed.
func Merge(reports ...Report) Report {
	out := Report{ByClass: make(map[classify.Class]uint64)}
	rows := make(map[rowKey]*Row)

	for _, r := range reports {
		out.Sessions += r.Sessions
		out.Events += r.Events
		out.Calls += r.Calls
		out.Wall += r.Wall
		if r.MaxDepth > out.MaxDepth {
			out.MaxDepth = r.MaxDepth
		}
		out.Dropped += r.Dropped
		out.Filtered += r.Filtered
		out.StrayReturns += r.StrayReturns
		out.Realigned += r.Realigned
		for class, n := range r.ByClass {
			out.ByClass[class] += n
		}
		for _, row := range r.Rows {
			key := rowKey{module: row.Module, fn: row.Func}
			agg, ok := rows[key]
			if !ok {
				copied := row
				rows[key] = &copied
				continue
			}
			agg.Calls += row.Calls
			agg.Cum += row.Cum
			agg.Self += row.Self
		}
	}

	out.Rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		out.Rows = append(out.Rows, *row)
	}
	sortRows(out.Rows)
	return out
}

// sortRows orders by cumulative time descending; ties break by call count
// descending, then name for determinism.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Cum != rows[j].Cum {
			return rows[i].Cum > rows[j].Cum
		}
		if rows[i].Calls != rows[j].Calls {
			return rows[i].Calls > rows[j].Calls
		}
		return rows[i].name() < rows[j].name()
	})
}
