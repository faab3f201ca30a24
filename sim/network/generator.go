package network

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/flowsim/flowsim/sim"
	"github.com/flowsim/flowsim/sim/policy"
	"github.com/flowsim/flowsim/sim/store"
	"github.com/flowsim/flowsim/sim/workload"
)

// HookPosCreated fires when a generator has placed a new entity on an edge.
var HookPosCreated = &sim.HookPos{Name: "Entity Created"}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	ID           string
	Capability   Capability // zero value means Source
	InterArrival workload.Sampler
	Priority     int   // priority given to created entities
	MaxEntities  int64 // stop after this many entities; 0 means unlimited
	OutPolicy    policy.Config
	OutSelector  policy.Selector // overrides OutPolicy when set
	OutStream    policy.Stream   // draws for a weighted OutPolicy; derived from the seed when nil
}

// Generator creates entities on a timer and pushes each onto an outgoing
// edge chosen by its out-policy.
//
// States: Idle while the timer runs, Dispatching from expiry until the put
// is granted. The next timer is armed only after the put, so a blocked
// outgoing edge throttles creation.
type Generator struct {
	nodeBase

	cfg     GeneratorConfig
	rng     *rand.Rand
	outSel  *edgeSelector
	ids     *sim.SequentialIDGenerator
	created int64
}

// Created returns the number of entities placed on outgoing edges.
func (g *Generator) Created() int64 { return g.created }

func (g *Generator) validate() []error {
	errs := g.validateEdges()
	if g.cfg.InterArrival == nil {
		errs = append(errs, configErr(g.id, "inter_arrival_time is required"))
	} else if c, ok := g.cfg.InterArrival.(workload.Constant); ok && c.Value <= 0 {
		errs = append(errs, configErr(g.id, "inter_arrival_time must be positive, got %g", c.Value))
	}
	if g.cfg.MaxEntities < 0 {
		errs = append(errs, configErr(g.id, "max_entities must be non-negative, got %d", g.cfg.MaxEntities))
	}
	errs = append(errs, validatePolicy(&g.nodeBase, "out", g.cfg.OutSelector, g.cfg.OutPolicy, len(g.out))...)
	return errs
}

func (g *Generator) start() {
	g.rng = g.model.rng.ForSubsystem(sim.SubsystemArrival(g.id))
	g.outSel = g.model.selectorFor(&g.nodeBase, "out", g.out, g.cfg.OutSelector, g.cfg.OutPolicy, g.cfg.OutStream)
	g.ids = sim.NewSequentialIDGenerator(g.id)
	g.state = StateIdle
	g.arm()
}

func (g *Generator) arm() {
	if g.cfg.MaxEntities > 0 && g.created >= g.cfg.MaxEntities {
		logrus.Debugf("[t=%.4f] %s: reached %d entities, stopping", g.model.sim.Now(), g.id, g.created)
		return
	}
	g.model.sim.After(sample(g.cfg.InterArrival, g.rng), g.dispatch)
}

func (g *Generator) dispatch() {
	g.state = StateDispatching
	now := g.model.sim.Now()
	e := &sim.Entity{
		ID:        g.ids.Generate(),
		Origin:    g.id,
		Priority:  g.cfg.Priority,
		CreatedAt: now,
		Ready:     true,
	}
	edge := g.outSel.next()
	logrus.Debugf("[t=%.4f] %s: created %s, reserving %s", now, g.id, e.ID, edge.id)
	edge.store.ReservePut(e.Priority, func(tok *store.Token) {
		must(edge.store.Put(tok, e))
		g.created++
		g.state = StateIdle
		g.invoke(HookPosCreated, e, edge.id)
		g.arm()
	})
}

// sample draws a duration and clamps it to >= 0.
func sample(s workload.Sampler, rng *rand.Rand) float64 {
	d := s.Sample(rng)
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	return d
}
