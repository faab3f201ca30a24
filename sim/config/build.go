package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flowsim/flowsim/sim/network"
	"github.com/flowsim/flowsim/sim/policy"
	"github.com/flowsim/flowsim/sim/store"
	"github.com/flowsim/flowsim/sim/workload"
)

// Build validates spec and materialises it as a network.Model. Nodes are
// registered and edges connected in file order. The returned model has
// passed network.Model.Validate.
func Build(spec *ModelSpec) (*network.Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	m := network.NewModel(spec.Seed)
	nodes := make(map[string]network.Node, len(spec.Nodes))
	for _, n := range spec.Nodes {
		node, err := addNode(m, n)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		nodes[n.ID] = node
	}
	for _, e := range spec.Edges {
		edge := m.AddEdge(network.EdgeConfig{ID: e.ID, Capacity: e.Capacity, Discipline: store.Discipline(e.Discipline)})
		if err := edge.Connect(nodes[e.From], nodes[e.To]); err != nil {
			return nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	logrus.Debugf("built model %q: %d nodes, %d edges", spec.Name, len(spec.Nodes), len(spec.Edges))
	return m, nil
}

func addNode(m *network.Model, n NodeSpec) (network.Node, error) {
	var capability network.Capability
	if n.Capability != "" {
		capability, _ = network.CapabilityByName(n.Capability)
	}
	switch n.Type {
	case TypeGenerator:
		interval, err := workload.NewSampler(*n.InterArrivalTime)
		if err != nil {
			return nil, fmt.Errorf("inter_arrival_time: %w", err)
		}
		return m.AddGenerator(network.GeneratorConfig{
			ID:           n.ID,
			Capability:   capability,
			InterArrival: interval,
			Priority:     n.Priority,
			MaxEntities:  n.MaxEntities,
			OutPolicy:    policyOrDefault(n.OutPolicy),
		}), nil
	case TypeProcessor:
		delay, err := workload.NewSampler(*n.ProcessingDelay)
		if err != nil {
			return nil, fmt.Errorf("processing_delay: %w", err)
		}
		work := n.WorkCapacity
		if work == 0 {
			work = 1
		}
		return m.AddProcessor(network.ProcessorConfig{
			ID:              n.ID,
			Capability:      capability,
			ProcessingDelay: delay,
			WorkCapacity:    work,
			InPolicy:        policyOrDefault(n.InPolicy),
			OutPolicy:       policyOrDefault(n.OutPolicy),
		}), nil
	default:
		return m.AddDrain(network.DrainConfig{
			ID:         n.ID,
			Capability: capability,
			InPolicy:   policyOrDefault(n.InPolicy),
		}), nil
	}
}

func policyOrDefault(p *policy.Config) policy.Config {
	if p == nil {
		return policy.Config{}
	}
	return *p
}
