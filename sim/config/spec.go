// Package config loads YAML model descriptions and builds runnable models
// from them.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowsim/flowsim/sim/network"
	"github.com/flowsim/flowsim/sim/policy"
	"github.com/flowsim/flowsim/sim/store"
	"github.com/flowsim/flowsim/sim/trace"
	"github.com/flowsim/flowsim/sim/workload"
)

// ModelSpec is the top-level model description.
// Loaded from YAML via LoadModelSpec(path).
type ModelSpec struct {
	Name       string     `yaml:"name"`
	Seed       int64      `yaml:"seed"`
	Horizon    float64    `yaml:"horizon"`
	TraceLevel string     `yaml:"trace_level,omitempty"`
	Nodes      []NodeSpec `yaml:"nodes"`
	Edges      []EdgeSpec `yaml:"edges"`
}

// NodeSpec describes one node. Which fields apply depends on Type.
type NodeSpec struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Capability string `yaml:"capability,omitempty"`

	// generator
	InterArrivalTime *workload.DistSpec `yaml:"inter_arrival_time,omitempty"`
	Priority         int                `yaml:"priority,omitempty"`
	MaxEntities      int64              `yaml:"max_entities,omitempty"`

	// processor
	ProcessingDelay *workload.DistSpec `yaml:"processing_delay,omitempty"`
	WorkCapacity    int                `yaml:"work_capacity,omitempty"` // default 1

	InPolicy  *policy.Config `yaml:"in_policy,omitempty"`
	OutPolicy *policy.Config `yaml:"out_policy,omitempty"`
}

// EdgeSpec describes one edge. Edges are connected in file order, which
// fixes each node's edge order for selection policies.
type EdgeSpec struct {
	ID         string `yaml:"id"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Capacity   int    `yaml:"capacity"`
	Discipline string `yaml:"discipline,omitempty"`
}

// Node type names.
const (
	TypeGenerator = "generator"
	TypeProcessor = "processor"
	TypeDrain     = "drain"
)

// validNodeTypes is the set of recognized node types.
var validNodeTypes = map[string]bool{TypeGenerator: true, TypeProcessor: true, TypeDrain: true}

// LoadModelSpec reads and parses a YAML model file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadModelSpec(path string) (*ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model spec: %w", err)
	}
	return ParseModelSpec(data)
}

// ParseModelSpec parses a YAML model description.
func ParseModelSpec(data []byte) (*ModelSpec, error) {
	var spec ModelSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing model spec: %w", err)
	}
	return &spec, nil
}

// Validate checks names, references and parameter ranges. Graph-level rules
// (capabilities, reachability, policy arity) are checked by Build through
// network.Model.Validate.
func (s *ModelSpec) Validate() error {
	if math.IsNaN(s.Horizon) || math.IsInf(s.Horizon, 0) || s.Horizon < 0 {
		return fmt.Errorf("horizon must be a finite non-negative number, got %f", s.Horizon)
	}
	if !trace.IsValidTraceLevel(s.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q; valid: none, episodes, transfers", s.TraceLevel)
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	ids := make(map[string]bool)
	for i := range s.Nodes {
		n := &s.Nodes[i]
		if err := validateNode(n, i); err != nil {
			return err
		}
		if ids[n.ID] {
			return fmt.Errorf("node[%d]: duplicate id %q", i, n.ID)
		}
		ids[n.ID] = true
	}
	edgeIDs := make(map[string]bool)
	for i, e := range s.Edges {
		prefix := fmt.Sprintf("edge[%d]", i)
		if e.ID != "" {
			if edgeIDs[e.ID] {
				return fmt.Errorf("%s: duplicate id %q", prefix, e.ID)
			}
			edgeIDs[e.ID] = true
		}
		if !ids[e.From] {
			return fmt.Errorf("%s: unknown source node %q", prefix, e.From)
		}
		if !ids[e.To] {
			return fmt.Errorf("%s: unknown destination node %q", prefix, e.To)
		}
		if e.Capacity < 1 {
			return fmt.Errorf("%s: capacity must be >= 1, got %d", prefix, e.Capacity)
		}
		if e.Discipline != "" && !store.IsValidDiscipline(e.Discipline) {
			return fmt.Errorf("%s: unknown discipline %q; valid: fifo, priority", prefix, e.Discipline)
		}
	}
	return nil
}

func validateNode(n *NodeSpec, idx int) error {
	prefix := fmt.Sprintf("node[%d]", idx)
	if n.ID == "" {
		return fmt.Errorf("%s: id is required", prefix)
	}
	prefix = fmt.Sprintf("node %q", n.ID)
	if !validNodeTypes[n.Type] {
		return fmt.Errorf("%s: unknown type %q; valid: drain, generator, processor", prefix, n.Type)
	}
	if n.Capability != "" {
		if _, ok := network.CapabilityByName(n.Capability); !ok {
			return fmt.Errorf("%s: unknown capability %q; valid: %s", prefix, n.Capability, capabilityNames())
		}
	}

	var misplaced []string
	isGen, isProc := n.Type == TypeGenerator, n.Type == TypeProcessor
	check := func(set bool, field string, allowed bool) {
		if set && !allowed {
			misplaced = append(misplaced, field)
		}
	}
	check(n.InterArrivalTime != nil, "inter_arrival_time", isGen)
	check(n.Priority != 0, "priority", isGen)
	check(n.MaxEntities != 0, "max_entities", isGen)
	check(n.ProcessingDelay != nil, "processing_delay", isProc)
	check(n.WorkCapacity != 0, "work_capacity", isProc)
	check(n.InPolicy != nil, "in_policy", !isGen)
	check(n.OutPolicy != nil, "out_policy", n.Type != TypeDrain)
	if len(misplaced) > 0 {
		return fmt.Errorf("%s: %s does not take %s", prefix, n.Type, strings.Join(misplaced, ", "))
	}

	switch n.Type {
	case TypeGenerator:
		if n.InterArrivalTime == nil {
			return fmt.Errorf("%s: inter_arrival_time is required", prefix)
		}
		if err := validateDelay(prefix+".inter_arrival_time", *n.InterArrivalTime); err != nil {
			return err
		}
		if n.MaxEntities < 0 {
			return fmt.Errorf("%s: max_entities must be non-negative, got %d", prefix, n.MaxEntities)
		}
	case TypeProcessor:
		if n.ProcessingDelay == nil {
			return fmt.Errorf("%s: processing_delay is required", prefix)
		}
		if err := validateDelay(prefix+".processing_delay", *n.ProcessingDelay); err != nil {
			return err
		}
		if n.WorkCapacity < 0 {
			return fmt.Errorf("%s: work_capacity must be >= 1, got %d", prefix, n.WorkCapacity)
		}
	}
	for _, p := range []struct {
		field string
		cfg   *policy.Config
	}{{"in_policy", n.InPolicy}, {"out_policy", n.OutPolicy}} {
		if p.cfg != nil && !policy.IsValidPolicy(p.cfg.Name) {
			return fmt.Errorf("%s.%s: unknown policy %q; valid: %s", prefix, p.field, p.cfg.Name, strings.Join(policy.ValidNames(), ", "))
		}
	}
	return nil
}

func validateDelay(name string, d workload.DistSpec) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d.IsNonPositiveConstant() {
		return fmt.Errorf("%s must be positive, got %g", name, d.Params["value"])
	}
	return nil
}

func capabilityNames() string {
	names := []string{"plain", "fan-out", "fan-in", "source", "source-fan-out", "sink", "sink-fan-in"}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
