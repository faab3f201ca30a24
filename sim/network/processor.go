package network

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/flowsim/flowsim/sim"
	"github.com/flowsim/flowsim/sim/policy"
	"github.com/flowsim/flowsim/sim/store"
	"github.com/flowsim/flowsim/sim/workload"
)

// HookPosEpisodeStart fires when an entity enters Processing.
var HookPosEpisodeStart = &sim.HookPos{Name: "Episode Start"}

// HookPosEpisodeEnd fires when an entity leaves Processing. Detail is an
// Episode.
var HookPosEpisodeEnd = &sim.HookPos{Name: "Episode End"}

// Episode is one entity's stay in a processor's Processing state.
type Episode struct {
	Node   string
	Entity string
	Start  float64
	End    float64
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	ID              string
	Capability      Capability // zero value means Plain
	ProcessingDelay workload.Sampler
	WorkCapacity    int // concurrent entities held by the processor; must be >= 1
	InPolicy        policy.Config
	InSelector      policy.Selector
	InStream        policy.Stream
	OutPolicy       policy.Config
	OutSelector     policy.Selector
	OutStream       policy.Stream
}

// Processor pulls entities from its incoming edges, holds each for a
// processing delay in one of WorkCapacity slots and pushes it to an
// outgoing edge.
//
// It runs WorkCapacity independent cycles. A cycle takes its next entity
// only after the previous one has been put downstream, so a blocked output
// edge stops the processor from draining its inputs.
type Processor struct {
	nodeBase

	cfg            ProcessorConfig
	rng            *rand.Rand
	inSel, outSel  *edgeSelector
	slots          *sim.Semaphore
	cycles         []*cycle
	processing     int
	awaitingOutput int
	processed      int64
}

// cycle is one get -> slot -> delay -> put loop of a Processor.
type cycle struct {
	p     *Processor
	state State
}

// stateRank orders cycle states by progress through the cycle.
var stateRank = map[State]int{
	StateIdle:           0,
	StateAwaitingInput:  1,
	StateAwaitingSlot:   2,
	StateProcessing:     3,
	StateAwaitingOutput: 4,
}

// State reports the most advanced state among the processor's cycles.
func (p *Processor) State() State {
	state := StateIdle
	for _, c := range p.cycles {
		if stateRank[c.state] > stateRank[state] {
			state = c.state
		}
	}
	return state
}

// CycleStates returns the state of each cycle.
func (p *Processor) CycleStates() []State {
	states := make([]State, len(p.cycles))
	for i, c := range p.cycles {
		states[i] = c.state
	}
	return states
}

// Processing returns the number of entities currently in Processing.
func (p *Processor) Processing() int { return p.processing }

// AwaitingOutput returns the number of processed entities waiting for an
// outgoing put to be granted.
func (p *Processor) AwaitingOutput() int { return p.awaitingOutput }

// Processed returns the number of entities put on outgoing edges.
func (p *Processor) Processed() int64 { return p.processed }

// WorkCapacity returns the configured number of work slots.
func (p *Processor) WorkCapacity() int { return p.cfg.WorkCapacity }

func (p *Processor) validate() []error {
	errs := p.validateEdges()
	if p.cfg.ProcessingDelay == nil {
		errs = append(errs, configErr(p.id, "processing_delay is required"))
	} else if c, ok := p.cfg.ProcessingDelay.(workload.Constant); ok && c.Value <= 0 {
		errs = append(errs, configErr(p.id, "processing_delay must be positive, got %g", c.Value))
	}
	if p.cfg.WorkCapacity < 1 {
		errs = append(errs, configErr(p.id, "work_capacity must be >= 1, got %d", p.cfg.WorkCapacity))
	}
	errs = append(errs, validatePolicy(&p.nodeBase, "in", p.cfg.InSelector, p.cfg.InPolicy, len(p.in))...)
	errs = append(errs, validatePolicy(&p.nodeBase, "out", p.cfg.OutSelector, p.cfg.OutPolicy, len(p.out))...)
	return errs
}

func (p *Processor) start() {
	p.rng = p.model.rng.ForSubsystem(sim.SubsystemService(p.id))
	p.inSel = p.model.selectorFor(&p.nodeBase, "in", p.in, p.cfg.InSelector, p.cfg.InPolicy, p.cfg.InStream)
	p.outSel = p.model.selectorFor(&p.nodeBase, "out", p.out, p.cfg.OutSelector, p.cfg.OutPolicy, p.cfg.OutStream)
	p.slots = sim.NewSemaphore(p.id, p.cfg.WorkCapacity, p.model.sim)
	p.cycles = make([]*cycle, p.cfg.WorkCapacity)
	for i := range p.cycles {
		p.cycles[i] = &cycle{p: p, state: StateIdle}
	}
	for _, c := range p.cycles {
		c.pull()
	}
}

func (c *cycle) pull() {
	p := c.p
	c.state = StateAwaitingInput
	edge := p.inSel.next()
	edge.store.ReserveGet(0, func(tok *store.Token) {
		e, err := edge.store.Get(tok)
		must(err)
		e.Ready = false
		c.state = StateAwaitingSlot
		p.slots.Acquire(func() { c.process(e) })
	})
}

func (c *cycle) process(e *sim.Entity) {
	p := c.p
	start := p.model.sim.Now()
	c.state = StateProcessing
	p.processing++
	logrus.Debugf("[t=%.4f] %s: processing %s (%d/%d slots)", start, p.id, e.ID, p.slots.InUse(), p.cfg.WorkCapacity)
	p.invoke(HookPosEpisodeStart, e, nil)
	p.model.sim.After(sample(p.cfg.ProcessingDelay, p.rng), func() {
		p.processing--
		p.invoke(HookPosEpisodeEnd, e, Episode{Node: p.id, Entity: e.ID, Start: start, End: p.model.sim.Now()})
		p.slots.Release()
		c.push(e)
	})
}

func (c *cycle) push(e *sim.Entity) {
	p := c.p
	c.state = StateAwaitingOutput
	p.awaitingOutput++
	edge := p.outSel.next()
	edge.store.ReservePut(e.Priority, func(tok *store.Token) {
		e.Ready = true
		must(edge.store.Put(tok, e))
		p.awaitingOutput--
		p.processed++
		c.state = StateIdle
		c.pull()
	})
}
