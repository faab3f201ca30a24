package network

import (
	"github.com/flowsim/flowsim/sim"
	"github.com/flowsim/flowsim/sim/policy"
	"github.com/flowsim/flowsim/sim/store"
)

// HookPosAbsorbed fires when a drain has taken and discarded an entity.
// Detail is the drain's absorbed count after the entity.
var HookPosAbsorbed = &sim.HookPos{Name: "Entity Absorbed"}

// DrainConfig configures a Drain.
type DrainConfig struct {
	ID         string
	Capability Capability // zero value means Sink
	InPolicy   policy.Config
	InSelector policy.Selector
	InStream   policy.Stream
}

// Drain consumes and discards entities. It is Idle while its get
// reservation is outstanding and Draining while it redeems it.
type Drain struct {
	nodeBase

	cfg      DrainConfig
	inSel    *edgeSelector
	absorbed int64
	lastSeen float64
}

// Absorbed returns the number of entities consumed.
func (d *Drain) Absorbed() int64 { return d.absorbed }

// LastAbsorbedAt returns the time of the most recent absorption.
func (d *Drain) LastAbsorbedAt() float64 { return d.lastSeen }

func (d *Drain) validate() []error {
	errs := d.validateEdges()
	errs = append(errs, validatePolicy(&d.nodeBase, "in", d.cfg.InSelector, d.cfg.InPolicy, len(d.in))...)
	return errs
}

func (d *Drain) start() {
	d.inSel = d.model.selectorFor(&d.nodeBase, "in", d.in, d.cfg.InSelector, d.cfg.InPolicy, d.cfg.InStream)
	d.pull()
}

func (d *Drain) pull() {
	d.state = StateIdle
	edge := d.inSel.next()
	edge.store.ReserveGet(0, func(tok *store.Token) {
		d.state = StateDraining
		e, err := edge.store.Get(tok)
		must(err)
		d.absorbed++
		d.lastSeen = d.model.sim.Now()
		d.invoke(HookPosAbsorbed, e, d.absorbed)
		d.pull()
	})
}
