// Package callgraph assembles ordered frame event sequences into call trees.
//
// A Builder is a single-lane stack machine covering one goroutine's event
// stream; a Demux routes a mixed stream into per-goroutine builders. Neither
// is goroutine-safe; the recording layer serializes access.
package callgraph

import (
	"time"

	"tracerlib/internal/classify"
)

// Node is one invocation in the reconstructed call tree.
type Node struct {
	Module string
	Func   string
	Class  classify.Class
	Gid    uint64
	Depth  int

	// CallSeq and ReturnSeq bracket the invocation in session sequence
	// numbers. ReturnSeq of zero means no return was observed.
	CallSeq   uint64
	ReturnSeq uint64

	CallTime   time.Time
	ReturnTime time.Time

	// Children in call order. Never reordered after insertion.
	Children []*Node

	// Incomplete marks a node whose return was skipped by unobserved stack
	// unwinding. Unterminated marks a node still open when the session ended.
	Incomplete   bool
	Unterminated bool

	// Elided counts calls inside this node's interval that recording
	// suppressed (inclusion filter or depth cap).
	Elided int
}

// Name returns the qualified "module.func" identifier.
func (n *Node) Name() string {
	if n.Module == "" {
		return n.Func
	}
	return n.Module + "." + n.Func
}

// Returned reports whether a matching return was observed.
func (n *Node) Returned() bool {
	return n.ReturnSeq != 0
}

// Duration returns the observed wall time of the invocation, or zero for
// nodes that never returned.
func (n *Node) Duration() time.Duration {
	if n.ReturnSeq == 0 {
		return 0
	}
	return n.ReturnTime.Sub(n.CallTime)
}

// Walk visits n and its descendants depth-first in call order.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}
