package timing

import (
	"log"
	"reflect"

	"github.com/sarchlab/otsim/sim/hooking"
)

// EventLogger is a hook that prints every event before it is handled.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns a new EventLogger which writes into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	kind := "primary"
	if evt.IsSecondary() {
		kind = "secondary"
	}

	h.logger.Printf("%d ns, %s, %s", evt.Time(), reflect.TypeOf(evt), kind)
}
