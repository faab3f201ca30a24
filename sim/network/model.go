package network

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flowsim/flowsim/sim"
	"github.com/flowsim/flowsim/sim/store"
)

// EdgeConfig configures an Edge.
type EdgeConfig struct {
	ID         string
	Capacity   int
	Discipline store.Discipline // empty means FIFO
}

// Model owns the nodes, edges and clock of one simulation.
//
// Hooks registered on the Model before the first Run are attached to every
// node and every edge store.
type Model struct {
	sim.HookableBase

	sim   *sim.Simulator
	rng   *sim.PartitionedRNG
	nodes []Node
	edges []*Edge

	nodeIDs map[Role]*sim.SequentialIDGenerator
	edgeIDs *sim.SequentialIDGenerator

	started bool
	fault   error
}

// NewModel creates an empty model whose random streams derive from seed.
func NewModel(seed int64) *Model {
	return &Model{
		sim: sim.NewSimulator(),
		rng: sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
		nodeIDs: map[Role]*sim.SequentialIDGenerator{
			RoleGenerator: sim.NewSequentialIDGenerator(RoleGenerator.String()),
			RoleProcessor: sim.NewSequentialIDGenerator(RoleProcessor.String()),
			RoleDrain:     sim.NewSequentialIDGenerator(RoleDrain.String()),
		},
		edgeIDs: sim.NewSequentialIDGenerator("edge"),
	}
}

// Now returns the current simulation time.
func (m *Model) Now() float64 { return m.sim.Now() }

// Simulator returns the model's event loop.
func (m *Model) Simulator() *sim.Simulator { return m.sim }

// Seed returns the seed the model's streams derive from.
func (m *Model) Seed() int64 { return int64(m.rng.Key()) }

// Nodes returns the nodes in registration order.
func (m *Model) Nodes() []Node { return append([]Node(nil), m.nodes...) }

// Edges returns the edges in registration order.
func (m *Model) Edges() []*Edge { return append([]*Edge(nil), m.edges...) }

// Node returns the node with the given ID, or nil.
func (m *Model) Node(id string) Node {
	for _, n := range m.nodes {
		if n.ID() == id {
			return n
		}
	}
	return nil
}

// Edge returns the edge with the given ID, or nil.
func (m *Model) Edge(id string) *Edge {
	for _, e := range m.edges {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (m *Model) register(n Node, id string, role Role, c, def Capability) {
	if id == "" {
		id = m.nodeIDs[role].Generate()
	}
	if c == (Capability{}) {
		c = def
	}
	b := n.base()
	b.id, b.role, b.capability, b.state, b.model, b.self = id, role, c, StateIdle, m, n
	m.nodes = append(m.nodes, n)
}

// AddGenerator adds a Generator. An empty ID is assigned as generator-N.
func (m *Model) AddGenerator(cfg GeneratorConfig) *Generator {
	g := &Generator{cfg: cfg}
	m.register(g, cfg.ID, RoleGenerator, cfg.Capability, Source)
	return g
}

// AddProcessor adds a Processor. An empty ID is assigned as processor-N.
func (m *Model) AddProcessor(cfg ProcessorConfig) *Processor {
	p := &Processor{cfg: cfg}
	m.register(p, cfg.ID, RoleProcessor, cfg.Capability, Plain)
	return p
}

// AddDrain adds a Drain. An empty ID is assigned as drain-N.
func (m *Model) AddDrain(cfg DrainConfig) *Drain {
	d := &Drain{cfg: cfg}
	m.register(d, cfg.ID, RoleDrain, cfg.Capability, Sink)
	return d
}

// AddEdge adds an unconnected Edge. An empty ID is assigned as edge-N. A
// capacity below 1 is reported by Validate.
func (m *Model) AddEdge(cfg EdgeConfig) *Edge {
	id := cfg.ID
	if id == "" {
		id = m.edgeIDs.Generate()
	}
	disc := cfg.Discipline
	if disc == "" {
		disc = store.FIFO
	}
	e := &Edge{id: id, capacity: cfg.Capacity, model: m}
	if cfg.Capacity >= 1 && store.IsValidDiscipline(string(disc)) {
		e.store = store.New(id, cfg.Capacity, disc, m.sim, m.sim)
	}
	m.edges = append(m.edges, e)
	return e
}

// Connect is shorthand for e.Connect(src, dst).
func (m *Model) Connect(e *Edge, src, dst Node) error {
	return e.Connect(src, dst)
}

// Validate checks the whole model and returns every problem found, joined.
// Each joined error is a *ConfigurationError.
func (m *Model) Validate() error {
	var errs []error
	if len(m.nodes) == 0 {
		errs = append(errs, configErr("", "model has no nodes"))
	}
	seen := make(map[string]bool)
	for _, n := range m.nodes {
		if seen[n.ID()] {
			errs = append(errs, configErr(n.ID(), "duplicate node ID"))
		}
		seen[n.ID()] = true
	}
	seenEdges := make(map[string]bool)
	for _, e := range m.edges {
		if seenEdges[e.id] {
			errs = append(errs, configErr(e.id, "duplicate edge ID"))
		}
		seenEdges[e.id] = true
		if e.capacity < 1 {
			errs = append(errs, configErr(e.id, "capacity must be >= 1, got %d", e.capacity))
		} else if e.store == nil {
			errs = append(errs, configErr(e.id, "unknown store discipline"))
		}
		if !e.Connected() {
			errs = append(errs, configErr(e.id, "edge is not connected"))
		}
	}
	for _, n := range m.nodes {
		errs = append(errs, n.validate()...)
	}
	errs = append(errs, m.validateReachability()...)
	return errors.Join(errs...)
}

// validateReachability rejects nodes no generator feeds and nodes from which
// no drain can be reached.
func (m *Model) validateReachability() []error {
	var fromSource, toSink []Node
	for _, n := range m.nodes {
		switch n.Role() {
		case RoleGenerator:
			fromSource = append(fromSource, n)
		case RoleDrain:
			toSink = append(toSink, n)
		}
	}
	fed := walk(fromSource, func(n Node) []*Edge { return n.base().out }, func(e *Edge) Node { return e.dst })
	drained := walk(toSink, func(n Node) []*Edge { return n.base().in }, func(e *Edge) Node { return e.src })

	var errs []error
	for _, n := range m.nodes {
		if !fed[n] {
			errs = append(errs, configErr(n.ID(), "unreachable: no generator feeds this %s", n.Role()))
		}
		if !drained[n] {
			errs = append(errs, configErr(n.ID(), "no drain is reachable from this %s", n.Role()))
		}
	}
	return errs
}

func walk(roots []Node, next func(Node) []*Edge, follow func(*Edge) Node) map[Node]bool {
	visited := make(map[Node]bool)
	stack := append([]Node(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, e := range next(n) {
			stack = append(stack, follow(e))
		}
	}
	return visited
}

// Run advances the model by duration time units. The first call validates
// the model and starts every node in registration order; later calls
// continue from the current time. A reservation fault inside a node behavior
// stops the run and is returned as a *store.ReservationError; the model
// cannot be run again after that.
func (m *Model) Run(duration float64) (err error) {
	if m.fault != nil {
		return m.fault
	}
	if duration < 0 {
		return configErr("", "run duration must be non-negative, got %g", duration)
	}
	if !m.started {
		if err := m.Validate(); err != nil {
			return err
		}
		m.start()
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rerr, ok := r.(error)
		var re *store.ReservationError
		if !ok || !errors.As(rerr, &re) {
			panic(r)
		}
		m.fault = fmt.Errorf("t=%.4f: %w", m.sim.Now(), re)
		err = m.fault
		logrus.Errorf("run aborted: %v", err)
	}()

	horizon := m.sim.Now() + duration
	logrus.Infof("running model until t=%.4f", horizon)
	m.sim.Run(horizon)
	return nil
}

func (m *Model) start() {
	m.started = true
	for _, n := range m.nodes {
		for _, h := range m.Hooks {
			n.AcceptHook(h)
		}
	}
	for _, e := range m.edges {
		for _, h := range m.Hooks {
			e.store.AcceptHook(h)
		}
	}
	logrus.Infof("starting %d nodes and %d edges (seed %d)", len(m.nodes), len(m.edges), m.Seed())
	for _, n := range m.nodes {
		m.sim.Defer(n.start)
	}
}
