package periph

import (
	"github.com/sarchlab/otsim/sim/timing"
)

// An Edge is a level change observed on a Line.
type Edge struct {
	Time timing.VTimeInNs
	High bool
}

// A Probe is a Line that remembers its level and every edge driven onto it.
// Probes stand in for the interrupt controller and the escalation receivers.
type Probe struct {
	name  string
	clock timing.TimeTeller
	level bool
	edges []Edge
}

// NewProbe creates a low Probe. The clock timestamps edges and may be nil.
func NewProbe(name string, clock timing.TimeTeller) *Probe {
	return &Probe{name: name, clock: clock}
}

// Name returns the name of the probed line.
func (p *Probe) Name() string {
	return p.name
}

// SetLevel records the level. Setting the current level again is not an
// edge.
func (p *Probe) SetLevel(high bool) {
	if high == p.level {
		return
	}

	p.level = high

	var now timing.VTimeInNs
	if p.clock != nil {
		now = p.clock.Now()
	}

	p.edges = append(p.edges, Edge{Time: now, High: high})
}

// IsHigh returns the current level.
func (p *Probe) IsHigh() bool {
	return p.level
}

// Edges returns the recorded edges, oldest first.
func (p *Probe) Edges() []Edge {
	return p.edges
}

// NumRisingEdges counts low-to-high transitions.
func (p *Probe) NumRisingEdges() int {
	n := 0

	for _, e := range p.edges {
		if e.High {
			n++
		}
	}

	return n
}
