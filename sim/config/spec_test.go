package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsim/flowsim/sim/network"
)

func TestLoadModelSpec_Line(t *testing.T) {
	// GIVEN the line model file
	spec, err := LoadModelSpec("testdata/line.yaml")
	require.NoError(t, err)

	// THEN scalars decode as constant distributions
	assert.Equal(t, "line", spec.Name)
	assert.Equal(t, int64(42), spec.Seed)
	require.Len(t, spec.Nodes, 3)
	require.NotNil(t, spec.Nodes[0].InterArrivalTime)
	assert.Equal(t, "constant", spec.Nodes[0].InterArrivalTime.Type)
	assert.Equal(t, 1.0, spec.Nodes[0].InterArrivalTime.Params["value"])

	// WHEN it is built and run to its horizon
	m, err := Build(spec)
	require.NoError(t, err)
	require.NoError(t, m.Run(spec.Horizon))

	// THEN it behaves like the hand-built line
	sink := m.Node("sink").(*network.Drain)
	assert.Equal(t, int64(12), sink.Absorbed())
	assert.LessOrEqual(t, m.Edge("in").Store().MaxLevel(), 3)
}

func TestLoadModelSpec_Split(t *testing.T) {
	spec, err := LoadModelSpec("testdata/split.yaml")
	require.NoError(t, err)
	m, err := Build(spec)
	require.NoError(t, err)

	arrivals := m.Node("arrivals").(*network.Generator)
	assert.Equal(t, network.SourceFanOut, arrivals.Capability())
	assert.Equal(t, 3, m.Node("slow").(*network.Processor).WorkCapacity())
	assert.Equal(t, 1, m.Node("fast").(*network.Processor).WorkCapacity())

	require.NoError(t, m.Run(spec.Horizon))
	fast := m.Edge("to-fast").Store().Puts()
	slow := m.Edge("to-slow").Store().Puts()
	assert.InDelta(t, 0.3, float64(fast)/float64(fast+slow), 0.05)
}

func TestLoadModelSpec_MissingFile(t *testing.T) {
	_, err := LoadModelSpec("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestParseModelSpec_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseModelSpec([]byte("name: x\nhorizn: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "horizn")
}

const validBase = `
horizon: 10
nodes:
  - {id: g, type: generator, inter_arrival_time: 1}
  - {id: d, type: drain}
edges:
  - {from: g, to: d, capacity: 1}
`

func TestModelSpec_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown node type",
			yaml: "nodes:\n  - {id: a, type: buffer}\n",
			want: `unknown type "buffer"`,
		},
		{
			name: "missing id",
			yaml: "nodes:\n  - {type: drain}\n",
			want: "id is required",
		},
		{
			name: "duplicate id",
			yaml: "nodes:\n  - {id: a, type: drain}\n  - {id: a, type: drain}\n",
			want: `duplicate id "a"`,
		},
		{
			name: "processor field on generator",
			yaml: "nodes:\n  - {id: g, type: generator, inter_arrival_time: 1, work_capacity: 2}\n",
			want: "generator does not take work_capacity",
		},
		{
			name: "zero interval",
			yaml: "nodes:\n  - {id: g, type: generator, inter_arrival_time: 0}\n",
			want: "inter_arrival_time must be positive",
		},
		{
			name: "missing delay",
			yaml: "nodes:\n  - {id: p, type: processor}\n",
			want: "processing_delay is required",
		},
		{
			name: "bad distribution",
			yaml: "nodes:\n  - {id: p, type: processor, processing_delay: {type: exponential, params: {rate: 1}}}\n",
			want: "requires params.mean",
		},
		{
			name: "unknown policy",
			yaml: "nodes:\n  - {id: d, type: drain, in_policy: {name: random}}\n",
			want: `unknown policy "random"`,
		},
		{
			name: "unknown capability",
			yaml: "nodes:\n  - {id: d, type: drain, capability: fan-all}\n",
			want: `unknown capability "fan-all"`,
		},
		{
			name: "edge to unknown node",
			yaml: "nodes:\n  - {id: d, type: drain}\nedges:\n  - {from: x, to: d, capacity: 1}\n",
			want: `unknown source node "x"`,
		},
		{
			name: "zero capacity",
			yaml: "nodes:\n  - {id: d, type: drain}\nedges:\n  - {from: d, to: d, capacity: 0}\n",
			want: "capacity must be >= 1",
		},
		{
			name: "bad discipline",
			yaml: "nodes:\n  - {id: d, type: drain}\nedges:\n  - {from: d, to: d, capacity: 1, discipline: lifo}\n",
			want: `unknown discipline "lifo"`,
		},
		{
			name: "negative horizon",
			yaml: "horizon: -1\nnodes:\n  - {id: d, type: drain}\n",
			want: "horizon must be",
		},
		{
			name: "bad trace level",
			yaml: "trace_level: all\nnodes:\n  - {id: d, type: drain}\n",
			want: `unknown trace_level "all"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseModelSpec([]byte(tt.yaml))
			require.NoError(t, err)
			err = spec.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	spec, err := ParseModelSpec([]byte(validBase))
	require.NoError(t, err)
	assert.NoError(t, spec.Validate())
}

func TestBuild_TopologyError(t *testing.T) {
	// GIVEN a plain generator with two outgoing edges
	spec, err := ParseModelSpec([]byte(validBase + "  - {from: g, to: d, capacity: 1}\n"))
	require.NoError(t, err)

	// WHEN it is built THEN the second connect fails
	_, err = Build(spec)
	var te *network.TopologyError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "edge-2", te.Edge)
}

func TestBuild_ConfigurationError(t *testing.T) {
	// GIVEN a processor nobody feeds
	spec, err := ParseModelSpec([]byte(validBase))
	require.NoError(t, err)
	spec.Nodes = append(spec.Nodes, NodeSpec{ID: "idle", Type: TypeProcessor, ProcessingDelay: spec.Nodes[0].InterArrivalTime})

	// WHEN it is built THEN validation reports it
	_, err = Build(spec)
	var ce *network.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "idle")
}
