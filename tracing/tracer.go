// Package tracing turns device hook activity into trace records and hands
// them to tracers that log, count or store them.
package tracing

import (
	"github.com/sarchlab/otsim/sim/timing"
)

// A Record is one traced activity of a device.
type Record struct {
	ID    string           `json:"id"`
	Time  timing.VTimeInNs `json:"time"`
	Where string           `json:"where"`
	Kind  string           `json:"kind"`
	What  string           `json:"what"`
	Item  any              `json:"-"`
}

// A Tracer collects trace records.
type Tracer interface {
	Trace(r Record)
}

// RecordFilter selects the records worth tracing. A nil filter accepts
// everything.
type RecordFilter func(r Record) bool
