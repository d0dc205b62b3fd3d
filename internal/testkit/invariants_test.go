package testkit_test

import (
	"testing"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/testkit"
	"tracerlib/internal/trace"
)

func TestTraversalOrderAllowsInterleavedLanes(t *testing.T) {
	// Goroutine 2's root opens between goroutine 1's root and its child, a
	// legal interleaving of independent lanes.
	events := []trace.Event{
		{Seq: 1, Kind: trace.KindCall, Module: "main", Func: "f", Gid: 1},
		{Seq: 2, Kind: trace.KindCall, Module: "main", Func: "g", Gid: 2},
		{Seq: 3, Kind: trace.KindCall, Module: "strings", Func: "ToUpper", Gid: 1, Depth: 1},
		{Seq: 4, Kind: trace.KindReturn, Module: "strings", Func: "ToUpper", Gid: 1, Depth: 1},
		{Seq: 5, Kind: trace.KindReturn, Module: "main", Func: "g", Gid: 2},
		{Seq: 6, Kind: trace.KindReturn, Module: "main", Func: "f", Gid: 1},
	}
	roots := callgraph.Build(events, false).Roots()

	if err := testkit.CheckEventOrder(events); err != nil {
		t.Errorf("CheckEventOrder: %v", err)
	}
	if err := testkit.CheckContainment(roots); err != nil {
		t.Errorf("CheckContainment: %v", err)
	}
	if err := testkit.CheckTraversalOrder(roots); err != nil {
		t.Errorf("interleaved lanes rejected: %v", err)
	}
}

func TestTraversalOrderRejectsDisorderWithinLane(t *testing.T) {
	root := &callgraph.Node{
		Module: "main", Func: "f", Gid: 1, CallSeq: 1,
		Children: []*callgraph.Node{
			{Module: "a", Func: "x", Gid: 1, CallSeq: 5},
			{Module: "a", Func: "y", Gid: 1, CallSeq: 3},
		},
	}
	if err := testkit.CheckTraversalOrder([]*callgraph.Node{root}); err == nil {
		t.Error("out-of-order children within one lane accepted")
	}
}
