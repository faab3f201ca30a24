package network

import (
	"fmt"

	"github.com/flowsim/flowsim/sim"
	"github.com/flowsim/flowsim/sim/policy"
)

// Capability bounds how many edges a node accepts in each direction.
type Capability struct {
	MaxIn  int `yaml:"max_in"`
	MaxOut int `yaml:"max_out"`
}

// Standard capabilities. Source and sink variants are the generator and
// drain shapes.
var (
	Plain         = Capability{MaxIn: 1, MaxOut: 1}
	FanOut        = Capability{MaxIn: 1, MaxOut: 2}
	FanIn         = Capability{MaxIn: 2, MaxOut: 1}
	Source        = Capability{MaxIn: 0, MaxOut: 1}
	SourceFanOut  = Capability{MaxIn: 0, MaxOut: 2}
	Sink          = Capability{MaxIn: 1, MaxOut: 0}
	SinkFanIn     = Capability{MaxIn: 2, MaxOut: 0}
	validCapNames = map[string]Capability{
		"plain":          Plain,
		"fan-out":        FanOut,
		"fan-in":         FanIn,
		"source":         Source,
		"source-fan-out": SourceFanOut,
		"sink":           Sink,
		"sink-fan-in":    SinkFanIn,
	}
)

// CapabilityByName resolves a named capability such as "fan-out".
func CapabilityByName(name string) (Capability, bool) {
	c, ok := validCapNames[name]
	return c, ok
}

func (c Capability) String() string {
	return fmt.Sprintf("{in:%d out:%d}", c.MaxIn, c.MaxOut)
}

// Role is the kind of behavior a node runs.
type Role int

const (
	RoleGenerator Role = iota
	RoleProcessor
	RoleDrain
)

func (r Role) String() string {
	switch r {
	case RoleGenerator:
		return "generator"
	case RoleProcessor:
		return "processor"
	case RoleDrain:
		return "drain"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// State is a node's lifecycle state.
type State string

const (
	StateIdle           State = "Idle"
	StateDispatching    State = "Dispatching"
	StateAwaitingInput  State = "AwaitingInput"
	StateAwaitingSlot   State = "AwaitingSlot"
	StateProcessing     State = "Processing"
	StateAwaitingOutput State = "AwaitingOutput"
	StateDraining       State = "Draining"
)

// Node is a station in the flow graph.
type Node interface {
	sim.Hookable
	ID() string
	Role() Role
	Capability() Capability
	InEdges() []*Edge
	OutEdges() []*Edge
	State() State

	base() *nodeBase
	validate() []error
	start()
}

// nodeBase holds the identity and adjacency shared by every role.
type nodeBase struct {
	sim.HookableBase

	id         string
	role       Role
	capability Capability
	in         []*Edge
	out        []*Edge
	state      State
	model      *Model
	self       Node
}

func (n *nodeBase) ID() string             { return n.id }
func (n *nodeBase) Role() Role             { return n.role }
func (n *nodeBase) Capability() Capability { return n.capability }
func (n *nodeBase) State() State           { return n.state }
func (n *nodeBase) base() *nodeBase        { return n }

// InEdges returns the incoming edges in connection order.
func (n *nodeBase) InEdges() []*Edge { return append([]*Edge(nil), n.in...) }

// OutEdges returns the outgoing edges in connection order.
func (n *nodeBase) OutEdges() []*Edge { return append([]*Edge(nil), n.out...) }

func (n *nodeBase) String() string {
	return fmt.Sprintf("%s(%s)", n.role, n.id)
}

// validateEdges reports missing connections and a capability that does not
// fit the role.
func (n *nodeBase) validateEdges() []error {
	var errs []error
	c := n.capability
	if c.MaxIn < 0 || c.MaxOut < 0 {
		errs = append(errs, configErr(n.id, "capability %s has a negative count", c))
	}
	switch n.role {
	case RoleGenerator:
		if c.MaxIn != 0 {
			errs = append(errs, configErr(n.id, "generator capability must have max_in 0, got %s", c))
		}
	case RoleDrain:
		if c.MaxOut != 0 {
			errs = append(errs, configErr(n.id, "drain capability must have max_out 0, got %s", c))
		}
	}
	if n.role != RoleDrain && len(n.out) == 0 {
		errs = append(errs, configErr(n.id, "%s has no outgoing edge", n.role))
	}
	if n.role != RoleGenerator && len(n.in) == 0 {
		errs = append(errs, configErr(n.id, "%s has no incoming edge", n.role))
	}
	return errs
}

func (n *nodeBase) invoke(pos *sim.HookPos, e *sim.Entity, detail any) {
	if n.NumHooks() == 0 {
		return
	}
	n.InvokeHook(sim.HookCtx{
		Domain: n.self,
		Pos:    pos,
		Now:    n.model.sim.Now(),
		Item:   e,
		Detail: detail,
	})
}

// edgeSelector binds a Selector to one direction of a node.
type edgeSelector struct {
	node       string
	dir        string
	edges      []*Edge
	candidates []policy.Candidate
	sel        policy.Selector
}

func newEdgeSelector(node, dir string, edges []*Edge, sel policy.Selector) *edgeSelector {
	cands := make([]policy.Candidate, len(edges))
	for i, e := range edges {
		cands[i] = e
	}
	return &edgeSelector{node: node, dir: dir, edges: edges, candidates: cands, sel: sel}
}

// next returns the edge chosen for the next dispatch. Panics if the policy
// returns an index outside the candidate list.
func (s *edgeSelector) next() *Edge {
	idx := s.sel.Select(s.candidates)
	if idx < 0 || idx >= len(s.edges) {
		panic(fmt.Sprintf("node %s: %s policy returned index %d for %d edges", s.node, s.dir, idx, len(s.edges)))
	}
	return s.edges[idx]
}

// selectorFor builds the selector for one direction. An explicit Selector
// wins; otherwise cfg is resolved through the policy registry with a stream
// derived from the model seed unless one is supplied.
func (m *Model) selectorFor(n *nodeBase, dir string, edges []*Edge, explicit policy.Selector, cfg policy.Config, stream policy.Stream) *edgeSelector {
	sel := explicit
	if sel == nil {
		if stream == nil && cfg.Name == policy.NameWeighted {
			stream = policy.NewSeededStream(m.rng.DeriveSeed(sim.SubsystemRouting(n.id, dir)))
		}
		sel = policy.New(cfg, len(edges), stream)
	}
	return newEdgeSelector(n.id, dir, edges, sel)
}

func validatePolicy(n *nodeBase, dir string, explicit policy.Selector, cfg policy.Config, edges int) []error {
	if explicit != nil || edges == 0 {
		return nil
	}
	if err := cfg.Validate(edges); err != nil {
		return []error{configErr(n.id, "%s policy: %v", dir, err)}
	}
	return nil
}

// must turns a store protocol fault into a panic that Model.Run recovers.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
