package timing

import (
	"github.com/sarchlab/otsim/sim/hooking"
)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInNs
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine is a unit that keeps the discrete event simulation running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run processes all the events until the queue is empty.
	Run() error

	// RunUntil processes every event due at or before t and then moves the
	// clock to t.
	RunUntil(t VTimeInNs) error

	// Pause stops event dispatch until Continue is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}
