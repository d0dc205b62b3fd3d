package callgraph_test

import (
	"testing"
	"time"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/trace"
)

type step struct {
	kind   trace.Kind
	module string
	fn     string
	gid    uint64
}

func feed(t *testing.T, steps []step) *callgraph.Demux {
	t.Helper()
	d := callgraph.NewDemux()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, s := range steps {
		gid := s.gid
		if gid == 0 {
			gid = 1
		}
		class := classify.ClassUser
		if s.module != "" && s.module != "main" {
			class = classify.ClassStdlib
		}
		d.Feed(&trace.Event{
			Seq:    uint64(i + 1),
			Time:   base.Add(time.Duration(i) * time.Millisecond),
			Kind:   s.kind,
			Module: s.module,
			Func:   s.fn,
			Gid:    gid,
			Class:  class,
		})
	}
	return d
}

func TestNestedCallTree(t *testing.T) {
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "f"},
		{kind: trace.KindCall, module: "strings", fn: "ToUpper"},
		{kind: trace.KindReturn, module: "strings", fn: "ToUpper"},
		{kind: trace.KindReturn, module: "main", fn: "f"},
	})
	d.CloseOpen(false)

	roots := d.Roots()
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	f := roots[0]
	if f.Name() != "main.f" || f.Class != classify.ClassUser {
		t.Errorf("root = %s [%s], want main.f [user]", f.Name(), f.Class)
	}
	if f.CallSeq != 1 || f.ReturnSeq != 4 {
		t.Errorf("root interval = [%d, %d), want [1, 4)", f.CallSeq, f.ReturnSeq)
	}
	if len(f.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(f.Children))
	}
	g := f.Children[0]
	if g.Name() != "strings.ToUpper" || g.Class != classify.ClassStdlib {
		t.Errorf("child = %s [%s], want strings.ToUpper [stdlib]", g.Name(), g.Class)
	}
	if g.CallSeq != 2 || g.ReturnSeq != 3 || g.Depth != 1 {
		t.Errorf("child = seq [%d, %d) depth %d, want [2, 3) depth 1", g.CallSeq, g.ReturnSeq, g.Depth)
	}
	if g.Duration() <= 0 {
		t.Errorf("child duration = %v, want positive", g.Duration())
	}
}

func TestDFSOrderMatchesCallSequence(t *testing.T) {
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "a"},
		{kind: trace.KindCall, module: "main", fn: "b"},
		{kind: trace.KindReturn, module: "main", fn: "b"},
		{kind: trace.KindCall, module: "main", fn: "c"},
		{kind: trace.KindCall, module: "main", fn: "d"},
		{kind: trace.KindReturn, module: "main", fn: "d"},
		{kind: trace.KindReturn, module: "main", fn: "c"},
		{kind: trace.KindReturn, module: "main", fn: "a"},
		{kind: trace.KindCall, module: "main", fn: "e"},
		{kind: trace.KindReturn, module: "main", fn: "e"},
	})
	d.CloseOpen(false)

	var seqs []uint64
	for _, root := range d.Roots() {
		root.Walk(func(n *callgraph.Node) {
			seqs = append(seqs, n.CallSeq)
		})
	}
	want := []uint64{1, 2, 4, 5, 9}
	if len(seqs) != len(want) {
		t.Fatalf("DFS visited %d nodes, want %d", len(seqs), len(want))
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("DFS call seq order = %v, want %v", seqs, want)
		}
	}
}

func TestMultipleRootsMidStackStart(t *testing.T) {
	// Tracing can begin mid-stack: the first observed event is a return.
	d := feed(t, []step{
		{kind: trace.KindReturn, module: "main", fn: "preexisting"},
		{kind: trace.KindCall, module: "main", fn: "a"},
		{kind: trace.KindReturn, module: "main", fn: "a"},
		{kind: trace.KindCall, module: "main", fn: "b"},
		{kind: trace.KindReturn, module: "main", fn: "b"},
	})
	d.CloseOpen(false)

	if got := d.StrayReturns(); got != 1 {
		t.Errorf("StrayReturns = %d, want 1", got)
	}
	roots := d.Roots()
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	if roots[0].Func != "a" || roots[1].Func != "b" {
		t.Errorf("roots = %s, %s, want a, b", roots[0].Func, roots[1].Func)
	}
}

func TestMismatchedReturnRealignsStack(t *testing.T) {
	// f calls g calls h; h and g never return (unobserved unwinding), then
	// f's own return arrives.
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "f"},
		{kind: trace.KindCall, module: "main", fn: "g"},
		{kind: trace.KindCall, module: "main", fn: "h"},
		{kind: trace.KindReturn, module: "main", fn: "f"},
	})
	d.CloseOpen(false)

	roots := d.Roots()
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	f := roots[0]
	if f.Incomplete || !f.Returned() {
		t.Errorf("f incomplete=%v returned=%v, want complete and returned", f.Incomplete, f.Returned())
	}
	g := f.Children[0]
	h := g.Children[0]
	if !g.Incomplete || !h.Incomplete {
		t.Errorf("g incomplete=%v h incomplete=%v, want both true", g.Incomplete, h.Incomplete)
	}
	if g.Returned() || h.Returned() {
		t.Error("realigned nodes must not record a return")
	}
	if got := d.Realigned(); got != 2 {
		t.Errorf("Realigned = %d, want 2", got)
	}
}

func TestCloseOpenPlainStop(t *testing.T) {
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "f"},
		{kind: trace.KindCall, module: "main", fn: "g"},
	})
	d.CloseOpen(false)

	f := d.Roots()[0]
	g := f.Children[0]
	if !f.Unterminated || !g.Unterminated {
		t.Errorf("f unterminated=%v g unterminated=%v, want both true", f.Unterminated, g.Unterminated)
	}
	if f.Incomplete || g.Incomplete {
		t.Error("plain stop must not mark nodes incomplete")
	}
}

func TestCloseOpenDuringUnwinding(t *testing.T) {
	// Panic in g unwinds through f; the session ends before either return.
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "f"},
		{kind: trace.KindCall, module: "strings", fn: "g"},
	})
	d.CloseOpen(true)

	f := d.Roots()[0]
	g := f.Children[0]
	if !g.Incomplete || g.Unterminated {
		t.Errorf("g incomplete=%v unterminated=%v, want incomplete only", g.Incomplete, g.Unterminated)
	}
	if !f.Unterminated || f.Incomplete {
		t.Errorf("f unterminated=%v incomplete=%v, want unterminated only", f.Unterminated, f.Incomplete)
	}
}

func TestMarkEventsIgnored(t *testing.T) {
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "f"},
		{kind: trace.KindMark, module: "main", fn: "note"},
		{kind: trace.KindReturn, module: "main", fn: "f"},
	})
	d.CloseOpen(false)

	roots := d.Roots()
	if len(roots) != 1 || len(roots[0].Children) != 0 {
		t.Fatalf("mark event altered the tree: %d roots, %d children", len(roots), len(roots[0].Children))
	}
}

func TestDemuxIndependentLanes(t *testing.T) {
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "f", gid: 1},
		{kind: trace.KindCall, module: "main", fn: "worker", gid: 2},
		{kind: trace.KindCall, module: "strings", fn: "ToUpper", gid: 2},
		{kind: trace.KindReturn, module: "strings", fn: "ToUpper", gid: 2},
		{kind: trace.KindReturn, module: "main", fn: "f", gid: 1},
		{kind: trace.KindReturn, module: "main", fn: "worker", gid: 2},
	})
	d.CloseOpen(false)

	gids := d.Gids()
	if len(gids) != 2 || gids[0] != 1 || gids[1] != 2 {
		t.Fatalf("Gids = %v, want [1 2]", gids)
	}
	roots := d.Roots()
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	// Merged roots are ordered by first call sequence.
	if roots[0].Func != "f" || roots[1].Func != "worker" {
		t.Errorf("roots = %s, %s, want f, worker", roots[0].Func, roots[1].Func)
	}
	// The interleaved stdlib call belongs to lane 2 only.
	if len(roots[0].Children) != 0 {
		t.Errorf("lane 1 root has %d children, want 0", len(roots[0].Children))
	}
	if len(roots[1].Children) != 1 || roots[1].Children[0].Func != "ToUpper" {
		t.Errorf("lane 2 root children wrong: %+v", roots[1].Children)
	}
}

func TestContainmentInvariant(t *testing.T) {
	d := feed(t, []step{
		{kind: trace.KindCall, module: "main", fn: "a"},
		{kind: trace.KindCall, module: "main", fn: "b"},
		{kind: trace.KindReturn, module: "main", fn: "b"},
		{kind: trace.KindCall, module: "main", fn: "c"},
		{kind: trace.KindReturn, module: "main", fn: "c"},
		{kind: trace.KindReturn, module: "main", fn: "a"},
	})
	d.CloseOpen(false)

	for _, root := range d.Roots() {
		root.Walk(func(n *callgraph.Node) {
			var prev uint64
			for _, child := range n.Children {
				if child.CallSeq <= prev {
					t.Errorf("node %s: child seqs not strictly increasing", n.Name())
				}
				prev = child.CallSeq
				if child.CallSeq <= n.CallSeq {
					t.Errorf("child %s called before parent %s", child.Name(), n.Name())
				}
				if n.Returned() && child.Returned() && child.ReturnSeq >= n.ReturnSeq {
					t.Errorf("child %s returns outside parent %s", child.Name(), n.Name())
				}
			}
		})
	}
}

func TestBatchBuildMatchesLive(t *testing.T) {
	steps := []step{
		{kind: trace.KindCall, module: "main", fn: "f"},
		{kind: trace.KindCall, module: "strings", fn: "g"},
		{kind: trace.KindReturn, module: "strings", fn: "g"},
		{kind: trace.KindCall, module: "strings", fn: "h"},
	}
	live := feed(t, steps)
	live.CloseOpen(true)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := make([]trace.Event, len(steps))
	for i, s := range steps {
		class := classify.ClassUser
		if s.module != "main" {
			class = classify.ClassStdlib
		}
		events[i] = trace.Event{
			Seq:    uint64(i + 1),
			Time:   base.Add(time.Duration(i) * time.Millisecond),
			Kind:   s.kind,
			Module: s.module,
			Func:   s.fn,
			Gid:    1,
			Class:  class,
		}
	}
	rebuilt := callgraph.Build(events, true)

	var want, got []string
	collect := func(dst *[]string) func(*callgraph.Node) {
		return func(n *callgraph.Node) {
			*dst = append(*dst, n.Name())
			if n.Incomplete {
				*dst = append(*dst, "incomplete")
			}
			if n.Unterminated {
				*dst = append(*dst, "unterminated")
			}
		}
	}
	for _, r := range live.Roots() {
		r.Walk(collect(&want))
	}
	for _, r := range rebuilt.Roots() {
		r.Walk(collect(&got))
	}
	if len(want) != len(got) {
		t.Fatalf("rebuilt forest shape differs: %v vs %v", got, want)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("rebuilt forest differs at %d: %v vs %v", i, got, want)
		}
	}
}
