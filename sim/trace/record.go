// Package trace records what happened during a run: processing episodes,
// store transfers and entity creation/absorption. Records are plain data;
// Recorder turns simulation hooks into records and a Sink stores them.
package trace

// EpisodeRecord captures one entity's stay in a processor's Processing state.
type EpisodeRecord struct {
	Node   string
	Entity string
	Start  float64
	End    float64
}

// TransferKind distinguishes store insertions from removals.
type TransferKind string

const (
	TransferPut TransferKind = "put"
	TransferGet TransferKind = "get"
)

// TransferRecord captures a single redeemed put or get on an edge store.
type TransferRecord struct {
	Edge   string
	Entity string
	Kind   TransferKind
	Time   float64
	Level  int // store level after the transfer
}

// LifecycleKind distinguishes entity creation from absorption.
type LifecycleKind string

const (
	LifecycleCreated  LifecycleKind = "created"
	LifecycleAbsorbed LifecycleKind = "absorbed"
)

// LifecycleRecord captures an entity entering or leaving the model.
type LifecycleRecord struct {
	Node   string
	Entity string
	Kind   LifecycleKind
	Time   float64
}
