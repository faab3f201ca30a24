package sim

import (
	"strconv"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

// SequentialIDGenerator produces prefix-1, prefix-2, ... and is the only
// generator used inside a run, so that identical runs produce identical IDs.
type SequentialIDGenerator struct {
	prefix string
	nextID uint64
}

// NewSequentialIDGenerator creates a SequentialIDGenerator for prefix.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDGenerator) Generate() string {
	g.nextID++
	return g.prefix + "-" + strconv.FormatUint(g.nextID, 10)
}

// NewRunID returns a globally unique, non-deterministic identifier for a run.
// It labels persisted traces and never feeds back into the simulation.
func NewRunID() string {
	return xid.New().String()
}
