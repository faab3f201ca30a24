package trace

import (
	"github.com/flowsim/flowsim/sim"
	"github.com/flowsim/flowsim/sim/network"
	"github.com/flowsim/flowsim/sim/store"
)

// TraceLevel controls how much a Recorder captures.
type TraceLevel string

const (
	// TraceLevelNone records nothing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEpisodes records processing episodes and entity lifecycle.
	TraceLevelEpisodes TraceLevel = "episodes"
	// TraceLevelTransfers additionally records every store put and get.
	TraceLevelTransfers TraceLevel = "transfers"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelEpisodes:  true,
	TraceLevelTransfers: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Sink receives records as they are produced.
type Sink interface {
	WriteEpisode(r EpisodeRecord)
	WriteTransfer(r TransferRecord)
	WriteLifecycle(r LifecycleRecord)
}

// FlowTrace is an in-memory Sink.
type FlowTrace struct {
	Episodes  []EpisodeRecord
	Transfers []TransferRecord
	Lifecycle []LifecycleRecord
}

// NewFlowTrace creates an empty FlowTrace.
func NewFlowTrace() *FlowTrace {
	return &FlowTrace{
		Episodes:  make([]EpisodeRecord, 0),
		Transfers: make([]TransferRecord, 0),
		Lifecycle: make([]LifecycleRecord, 0),
	}
}

// WriteEpisode appends an episode record.
func (ft *FlowTrace) WriteEpisode(r EpisodeRecord) { ft.Episodes = append(ft.Episodes, r) }

// WriteTransfer appends a transfer record.
func (ft *FlowTrace) WriteTransfer(r TransferRecord) { ft.Transfers = append(ft.Transfers, r) }

// WriteLifecycle appends a lifecycle record.
func (ft *FlowTrace) WriteLifecycle(r LifecycleRecord) { ft.Lifecycle = append(ft.Lifecycle, r) }

// MultiSink fans records out to several sinks.
type MultiSink []Sink

func (m MultiSink) WriteEpisode(r EpisodeRecord) {
	for _, s := range m {
		s.WriteEpisode(r)
	}
}

func (m MultiSink) WriteTransfer(r TransferRecord) {
	for _, s := range m {
		s.WriteTransfer(r)
	}
}

func (m MultiSink) WriteLifecycle(r LifecycleRecord) {
	for _, s := range m {
		s.WriteLifecycle(r)
	}
}

// Recorder is a sim.Hook that converts node and store hook invocations into
// records. Register it with network.Model.AcceptHook before the first Run.
type Recorder struct {
	level TraceLevel
	sink  Sink
}

// NewRecorder creates a Recorder writing to sink at the given level.
func NewRecorder(level TraceLevel, sink Sink) *Recorder {
	if level == "" {
		level = TraceLevelNone
	}
	return &Recorder{level: level, sink: sink}
}

// Func implements sim.Hook.
func (r *Recorder) Func(ctx sim.HookCtx) {
	if r.level == TraceLevelNone {
		return
	}
	switch ctx.Pos {
	case network.HookPosEpisodeEnd:
		ep := ctx.Detail.(network.Episode)
		r.sink.WriteEpisode(EpisodeRecord{Node: ep.Node, Entity: ep.Entity, Start: ep.Start, End: ep.End})
	case network.HookPosCreated:
		r.lifecycle(ctx, LifecycleCreated)
	case network.HookPosAbsorbed:
		r.lifecycle(ctx, LifecycleAbsorbed)
	case store.HookPosPut:
		r.transfer(ctx, TransferPut)
	case store.HookPosGet:
		r.transfer(ctx, TransferGet)
	}
}

func (r *Recorder) lifecycle(ctx sim.HookCtx, kind LifecycleKind) {
	r.sink.WriteLifecycle(LifecycleRecord{
		Node:   ctx.Domain.(network.Node).ID(),
		Entity: ctx.Item.(*sim.Entity).ID,
		Kind:   kind,
		Time:   ctx.Now,
	})
}

func (r *Recorder) transfer(ctx sim.HookCtx, kind TransferKind) {
	if r.level != TraceLevelTransfers {
		return
	}
	r.sink.WriteTransfer(TransferRecord{
		Edge:   ctx.Domain.(*store.Store).Name(),
		Entity: ctx.Item.(*sim.Entity).ID,
		Kind:   kind,
		Time:   ctx.Now,
		Level:  ctx.Detail.(int),
	})
}
