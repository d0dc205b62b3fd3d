package callgraph

import "tracerlib/internal/trace"

// Builder assembles one goroutine's event stream into a call forest. There
// may be more than one root when tracing starts mid-stack. Builder is not
// goroutine-safe: one builder per event lane.
type Builder struct {
	gid   uint64
	roots []*Node
	stack []*Node

	strayReturns int
	realigned    int
}

// NewBuilder creates an empty builder for the given goroutine lane.
func NewBuilder(gid uint64) *Builder {
	return &Builder{gid: gid}
}

// Feed consumes one event. Mark events are ignored. Anomalies (returns with
// no matching open call) are recorded and recovered from; Feed never fails.
func (b *Builder) Feed(ev *trace.Event) {
	if ev == nil {
		return
	}
	switch ev.Kind {
	case trace.KindCall:
		b.feedCall(ev)
	case trace.KindReturn:
		b.feedReturn(ev)
	}
}

func (b *Builder) feedCall(ev *trace.Event) {
	node := &Node{
		Module:   ev.Module,
		Func:     ev.Func,
		Class:    ev.Class,
		Gid:      b.gid,
		Depth:    len(b.stack),
		CallSeq:  ev.Seq,
		CallTime: ev.Time,
	}
	if top := b.Top(); top != nil {
		top.Children = append(top.Children, node)
	} else {
		b.roots = append(b.roots, node)
	}
	b.stack = append(b.stack, node)
}

func (b *Builder) feedReturn(ev *trace.Event) {
	match := -1
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].Module == ev.Module && b.stack[i].Func == ev.Func {
			match = i
			break
		}
	}
	if match < 0 {
		// No open call anywhere on the stack: a tracing gap. Count it and
		// leave the stack untouched.
		b.strayReturns++
		return
	}

	// Frames above the match were unwound without their returns being
	// observed. Close them as incomplete.
	for i := len(b.stack) - 1; i > match; i-- {
		b.stack[i].Incomplete = true
		b.realigned++
	}

	node := b.stack[match]
	node.ReturnSeq = ev.Seq
	node.ReturnTime = ev.Time
	b.stack = b.stack[:match]
}

// CloseOpen closes every node still on the stack at session end. When the
// session ended during panic unwinding, non-root open nodes missed their
// returns and are marked incomplete; open roots are unterminated. A plain
// stop leaves all open nodes unterminated.
func (b *Builder) CloseOpen(unwound bool) {
	for i := len(b.stack) - 1; i >= 0; i-- {
		node := b.stack[i]
		if unwound && i > 0 {
			node.Incomplete = true
		} else {
			node.Unterminated = true
		}
	}
	b.stack = b.stack[:0]
}

// Top returns the innermost open node, or nil when the stack is empty.
func (b *Builder) Top() *Node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// Roots returns the forest in first-call order.
func (b *Builder) Roots() []*Node {
	return b.roots
}

// Open returns the number of currently open nodes.
func (b *Builder) Open() int {
	return len(b.stack)
}

// StrayReturns returns the count of returns with no matching open call.
func (b *Builder) StrayReturns() int {
	return b.strayReturns
}

// Realigned returns the count of nodes closed as incomplete during stack
// realignment.
func (b *Builder) Realigned() int {
	return b.realigned
}
