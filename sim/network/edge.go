package network

import (
	"fmt"

	"github.com/flowsim/flowsim/sim/store"
)

// Edge is a directed, bounded link between two nodes. It owns the Store that
// carries entities from its source to its destination.
type Edge struct {
	id       string
	capacity int
	store    *store.Store
	src, dst Node
	model    *Model
}

// ID returns the edge ID.
func (e *Edge) ID() string { return e.id }

// Capacity returns the configured capacity.
func (e *Edge) Capacity() int { return e.capacity }

// Level returns the number of entities currently stored on the edge.
func (e *Edge) Level() int {
	if e.store == nil {
		return 0
	}
	return e.store.Level()
}

// Store returns the edge's store, or nil if the capacity was invalid.
func (e *Edge) Store() *store.Store { return e.store }

// Source returns the source node, or nil before Connect.
func (e *Edge) Source() Node { return e.src }

// Destination returns the destination node, or nil before Connect.
func (e *Edge) Destination() Node { return e.dst }

// Connected reports whether Connect has succeeded.
func (e *Edge) Connected() bool { return e.src != nil }

// Connect attaches the edge from src to dst, appending it to src's outgoing
// and dst's incoming edges. Repeating the same connection is a no-op;
// re-pointing a connected edge or exceeding either node's capability fails
// with a *TopologyError and leaves every adjacency list unchanged.
func (e *Edge) Connect(src, dst Node) error {
	if src == nil || dst == nil {
		return &TopologyError{Edge: e.id, Src: nodeID(src), Dst: nodeID(dst), Reason: "both endpoints are required"}
	}
	fail := func(reason string, args ...any) error {
		return &TopologyError{Edge: e.id, Src: src.ID(), Dst: dst.ID(), Reason: fmt.Sprintf(reason, args...)}
	}
	if e.src != nil {
		if e.src == src && e.dst == dst {
			return nil
		}
		return fail("already connected %s -> %s", e.src.ID(), e.dst.ID())
	}
	sb, db := src.base(), dst.base()
	if sb.model != e.model || db.model != e.model {
		return fail("nodes and edge belong to different models")
	}
	if e.model.started {
		return fail("model is already running")
	}
	if len(sb.out) >= sb.capability.MaxOut {
		return fail("%s already has %d of %d outgoing edges", src.ID(), len(sb.out), sb.capability.MaxOut)
	}
	if len(db.in) >= db.capability.MaxIn {
		return fail("%s already has %d of %d incoming edges", dst.ID(), len(db.in), db.capability.MaxIn)
	}
	sb.out = append(sb.out, e)
	db.in = append(db.in, e)
	e.src, e.dst = src, dst
	return nil
}

func nodeID(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.ID()
}
