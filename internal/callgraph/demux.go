package callgraph

import (
	"sort"

	"tracerlib/internal/trace"
)

// Demux routes a mixed multi-goroutine event stream into independent
// per-goroutine builders. Each lane has its own stack; the stream order
// within one lane is preserved. Demux itself is not goroutine-safe.
type Demux struct {
	lanes map[uint64]*Builder
	order []uint64 // lane creation order
}

// NewDemux creates an empty demultiplexer.
func NewDemux() *Demux {
	return &Demux{lanes: make(map[uint64]*Builder)}
}

// Lane returns the builder for the given goroutine, creating it on first use.
func (d *Demux) Lane(gid uint64) *Builder {
	if b, ok := d.lanes[gid]; ok {
		return b
	}
	b := NewBuilder(gid)
	d.lanes[gid] = b
	d.order = append(d.order, gid)
	return b
}

// Feed routes one event to its goroutine's builder.
func (d *Demux) Feed(ev *trace.Event) {
	if ev == nil {
		return
	}
	d.Lane(ev.Gid).Feed(ev)
}

// CloseOpen closes open nodes in every lane.
func (d *Demux) CloseOpen(unwound bool) {
	for _, gid := range d.order {
		d.lanes[gid].CloseOpen(unwound)
	}
}

// Roots returns all lanes' roots merged, ordered by first call sequence.
func (d *Demux) Roots() []*Node {
	var roots []*Node
	for _, gid := range d.order {
		roots = append(roots, d.lanes[gid].Roots()...)
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].CallSeq < roots[j].CallSeq
	})
	return roots
}

// Gids returns the goroutine IDs with at least one observed event, in
// first-seen order.
func (d *Demux) Gids() []uint64 {
	out := make([]uint64, len(d.order))
	copy(out, d.order)
	return out
}

// StrayReturns sums stray return counts across lanes.
func (d *Demux) StrayReturns() int {
	total := 0
	for _, b := range d.lanes {
		total += b.StrayReturns()
	}
	return total
}

// Realigned sums realignment counts across lanes.
func (d *Demux) Realigned() int {
	total := 0
	for _, b := range d.lanes {
		total += b.Realigned()
	}
	return total
}

// Build reconstructs the call forest from a finalized event sequence, such
// as one loaded from disk. unwound mirrors whether the originating session
// ended during panic unwinding, so the rebuilt forest carries the same
// incomplete/unterminated marks as the live one.
func Build(events []trace.Event, unwound bool) *Demux {
	d := NewDemux()
	for i := range events {
		d.Feed(&events[i])
	}
	d.CloseOpen(unwound)
	return d
}
