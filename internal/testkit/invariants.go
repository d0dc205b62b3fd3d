// Package testkit provides invariant checkers for finalized trace sessions,
// shared by package tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/session"
	"tracerlib/internal/trace"
)

// CheckSessionInvariants runs the full invariant set on a finalized session:
// 1) the event sequence numbers are strictly increasing
// 2) every node's children have strictly increasing call sequences
// 3) every child's [call, return) interval lies inside its parent's
// 4) depth-first traversal order equals ascending call sequence order
func CheckSessionInvariants(s *session.Session) error {
	if s == nil {
		return fmt.Errorf("nil session")
	}
	if !s.Finalized() {
		return fmt.Errorf("session %s not finalized", s.ID())
	}
	if err := CheckEventOrder(s.Events()); err != nil {
		return err
	}
	roots := s.Roots()
	if err := CheckContainment(roots); err != nil {
		return err
	}
	return CheckTraversalOrder(roots)
}

// CheckEventOrder verifies strictly increasing sequence numbers and
// non-negative depths. Gaps are legal: suppressed events consume sequence
// numbers without being retained.
func CheckEventOrder(events []trace.Event) error {
	var prev uint64
	for i := range events {
		ev := &events[i]
		if ev.Seq <= prev {
			return fmt.Errorf("event %d: seq %d not above predecessor %d", i, ev.Seq, prev)
		}
		prev = ev.Seq
		if ev.Depth < 0 {
			return fmt.Errorf("event %d: negative depth %d", i, ev.Depth)
		}
		if ev.Kind != trace.KindCall && ev.Kind != trace.KindReturn && ev.Kind != trace.KindMark {
			return fmt.Errorf("event %d: invalid kind %d", i, uint8(ev.Kind))
		}
	}
	// Strictly increasing 1-based sequences imply the last seq is at least
	// the retained event count.
	total, err := safecast.Conv[uint64](len(events))
	if err != nil {
		return err
	}
	if len(events) > 0 && events[len(events)-1].Seq < total {
		return fmt.Errorf("last seq %d below retained event count %d", events[len(events)-1].Seq, total)
	}
	return nil
}

// CheckContainment verifies per-node child ordering and interval
// containment across a forest.
func CheckContainment(roots []*callgraph.Node) error {
	for _, root := range roots {
		if err := checkNodeContainment(root); err != nil {
			return err
		}
	}
	return nil
}

func checkNodeContainment(n *callgraph.Node) error {
	var prev uint64
	for _, child := range n.Children {
		if child.CallSeq <= prev {
			return fmt.Errorf("node %s: children not in strictly increasing call order", n.Name())
		}
		prev = child.CallSeq
		if child.CallSeq <= n.CallSeq {
			return fmt.Errorf("child %s called at seq %d before parent %s at %d",
				child.Name(), child.CallSeq, n.Name(), n.CallSeq)
		}
		if child.Returned() && child.ReturnSeq <= child.CallSeq {
			return fmt.Errorf("node %s: return seq %d not after call seq %d",
				child.Name(), child.ReturnSeq, child.CallSeq)
		}
		if n.Returned() && child.Returned() && child.ReturnSeq >= n.ReturnSeq {
			return fmt.Errorf("child %s interval [%d, %d) escapes parent %s interval ending %d",
				child.Name(), child.CallSeq, child.ReturnSeq, n.Name(), n.ReturnSeq)
		}
		if err := checkNodeContainment(child); err != nil {
			return err
		}
	}
	return nil
}

// CheckTraversalOrder verifies that within each goroutine's lane, depth-first
// traversal of the lane's trees visits nodes in ascending call sequence
// order. Independent goroutines interleave freely, so no ordering holds
// across lanes.
func CheckTraversalOrder(roots []*callgraph.Node) error {
	lanes := make(map[uint64][]uint64)
	var gids []uint64
	for _, root := range roots {
		if _, ok := lanes[root.Gid]; !ok {
			gids = append(gids, root.Gid)
		}
		root.Walk(func(n *callgraph.Node) {
			lanes[root.Gid] = append(lanes[root.Gid], n.CallSeq)
		})
	}
	for _, gid := range gids {
		seqs := lanes[gid]
		for i := 1; i < len(seqs); i++ {
			if seqs[i] <= seqs[i-1] {
				return fmt.Errorf("gid %d traversal position %d: call seq %d not above %d",
					gid, i, seqs[i], seqs[i-1])
			}
		}
	}
	return nil
}

// CheckClassDeterminism verifies that repeated classification of every
// module observed in the events yields the event's recorded class.
func CheckClassDeterminism(idx *classify.Index, events []trace.Event) error {
	if idx == nil {
		return fmt.Errorf("nil index")
	}
	for i := range events {
		ev := &events[i]
		if ev.Kind == trace.KindMark {
			continue
		}
		for round := 0; round < 2; round++ {
			if got := idx.Class(ev.Module); got != ev.Class {
				return fmt.Errorf("event %d: module %q classified %s, recorded %s",
					i, ev.Module, got, ev.Class)
			}
		}
	}
	return nil
}
