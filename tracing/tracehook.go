package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/otsim/sim/hooking"
	"github.com/sarchlab/otsim/sim/id"
	"github.com/sarchlab/otsim/sim/naming"
	"github.com/sarchlab/otsim/sim/timing"
)

// NamedHookable is a device that tracers can attach to.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
}

// CollectTrace lets the tracer collect every hook invocation of a domain.
// Records are stamped with the time of the clock.
func CollectTrace(
	domain NamedHookable,
	clock timing.TimeTeller,
	tracer Tracer,
) {
	CollectTraceWithFilter(domain, clock, tracer, nil)
}

// CollectTraceWithFilter is CollectTrace with a filter applied before the
// tracer sees a record.
func CollectTraceWithFilter(
	domain NamedHookable,
	clock timing.TimeTeller,
	tracer Tracer,
	filter RecordFilter,
) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.tracer == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{
		where:  domain.Name(),
		clock:  clock,
		tracer: tracer,
		filter: filter,
		ids:    id.NewIDGenerator(),
	})
}

// A traceHook converts hook invocations into records.
type traceHook struct {
	where  string
	clock  timing.TimeTeller
	tracer Tracer
	filter RecordFilter
	ids    id.IDGenerator
}

// Func builds a record from the hook context and passes it on.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	r := Record{
		Time:  h.clock.Now(),
		Where: h.where,
		Kind:  ctx.Pos.Name,
		What:  fmt.Sprint(ctx.Item),
		Item:  ctx.Item,
	}

	if h.filter != nil && !h.filter(r) {
		return
	}

	r.ID = h.where + "-" + h.ids.Generate()
	h.tracer.Trace(r)
}
