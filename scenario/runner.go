package scenario

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sarchlab/otsim/periph"
	"github.com/sarchlab/otsim/periph/alert"
	"github.com/sarchlab/otsim/sim/naming"
	"github.com/sarchlab/otsim/sim/timing"
	"github.com/sarchlab/otsim/simulation"
)

// A Runner plays a scenario on an alert handler that it builds inside a
// simulation. The escalation and interrupt outputs are connected to probes
// so that steps can check their levels and edges.
type Runner struct {
	scenario *Scenario
	sim      *simulation.Simulation
	engine   *timing.SerialEngine
	handler  *alert.Comp
	escLines [alert.NumEscalationLines]*periph.Probe
	irqs     []*periph.Probe
}

// NewRunner builds the handler of the scenario and registers it with the
// simulation.
func NewRunner(
	s *simulation.Simulation,
	sc *Scenario,
	defaults alert.Config,
	logger *log.Logger,
) (*Runner, error) {
	config, err := sc.Config(defaults)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		scenario: sc,
		sim:      s,
		engine:   s.GetEngine(),
	}

	escLines := make([]periph.Line, alert.NumEscalationLines)
	for i := range r.escLines {
		r.escLines[i] = periph.NewProbe(
			naming.BuildNameWithIndex(sc.DeviceName(), "Esc", i), r.engine)
		escLines[i] = r.escLines[i]
	}

	irqLines := make([]periph.Line, config.NumClasses)
	r.irqs = make([]*periph.Probe, config.NumClasses)
	for i := range r.irqs {
		r.irqs[i] = periph.NewProbe(
			naming.BuildNameWithIndex(sc.DeviceName(), "Irq", i), r.engine)
		irqLines[i] = r.irqs[i]
	}

	builder := alert.MakeBuilder().
		WithEngine(r.engine).
		WithConfig(config).
		WithEscalationLines(escLines...).
		WithIRQLines(irqLines...)
	if logger != nil {
		builder = builder.WithLogger(logger)
	}

	r.handler = builder.Build(sc.DeviceName())
	s.RegisterDevice(r.handler)

	return r, nil
}

// Handler returns the device the scenario runs on.
func (r *Runner) Handler() *alert.Comp {
	return r.handler
}

// EscalationProbe returns the probe attached to an escalation line.
func (r *Runner) EscalationProbe(line int) *periph.Probe {
	return r.escLines[line]
}

// Run executes the steps in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context) error {
	bar := r.sim.GetMonitor().CreateProgressBar(
		r.scenario.Name, uint64(len(r.scenario.Steps)))
	defer r.sim.GetMonitor().CompleteProgressBar(bar)

	for i, step := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		kind, err := step.Kind()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		bar.StartStep()

		if err := r.runStep(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, kind, err)
		}

		bar.FinishStep()
	}

	return nil
}

func (r *Runner) runStep(s Step) error {
	switch {
	case s.Write != nil:
		return r.write(s.Write)
	case s.Read != nil:
		return r.read(s.Read)
	case s.Signal != nil:
		return r.signal(s.Signal)
	case s.Advance != "":
		return r.advance(s.Advance)
	case s.Reset:
		r.handler.Reset()
		return nil
	case s.ExpectLine != nil:
		return r.expectLine(s.ExpectLine)
	case s.ExpectIRQ != nil:
		return r.expectIRQ(s.ExpectIRQ)
	case s.ExpectState != nil:
		return r.expectState(s.ExpectState)
	case s.ExpectGuestErrors != nil:
		return r.expectGuestErrors(*s.ExpectGuestErrors)
	}

	return ErrInvalidScenario
}

func (r *Runner) resolve(ref RegRef) (int, error) {
	if ref.Reg != "" {
		i, ok := r.handler.RegisterIndex(ref.Reg)
		if !ok {
			return 0, fmt.Errorf("%w: no register named %s",
				ErrInvalidScenario, ref.Reg)
		}

		return i, nil
	}

	if ref.Offset != nil {
		i, err := periph.WordIndex(*ref.Offset, r.handler.NumRegisters())
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}

		return i, nil
	}

	return 0, fmt.Errorf("%w: register not given", ErrInvalidScenario)
}

func (r *Runner) write(w *Write) error {
	i, err := r.resolve(w.RegRef)
	if err != nil {
		return err
	}

	r.handler.WriteReg(i, w.Value)
	if w.Shadowed {
		r.handler.WriteReg(i, w.Value)
	}

	return nil
}

func (r *Runner) read(rd *Read) error {
	i, err := r.resolve(rd.RegRef)
	if err != nil {
		return err
	}

	value := r.handler.ReadReg(i)
	if rd.Expect == nil {
		return nil
	}

	mask := ^uint32(0)
	if rd.Mask != nil {
		mask = *rd.Mask
	}

	if value&mask != *rd.Expect&mask {
		return fmt.Errorf("%w: %s reads 0x%08x, want 0x%08x (mask 0x%08x)",
			ErrExpectation, rd.RegRef, value, *rd.Expect, mask)
	}

	return nil
}

func (r *Runner) signal(s *Signal) error {
	level := true
	if s.Level != nil {
		level = *s.Level
	}

	switch {
	case s.Alert != nil && s.Local != "":
		return fmt.Errorf("%w: signal has both alert and local",
			ErrInvalidScenario)
	case s.Alert != nil:
		if *s.Alert < 0 || *s.Alert >= r.handler.Config().NumAlerts {
			return fmt.Errorf("%w: no alert %d", ErrInvalidScenario, *s.Alert)
		}

		r.handler.SignalAlert(*s.Alert, level)
	case s.Local != "":
		i, err := localAlertIndex(s.Local)
		if err != nil {
			return err
		}

		r.handler.SignalLocalAlert(i, level)
	default:
		return fmt.Errorf("%w: signal needs alert or local",
			ErrInvalidScenario)
	}

	return nil
}

func localAlertIndex(name string) (int, error) {
	for i := 0; i < alert.NumLocalAlerts; i++ {
		if alert.LocalAlertName(i) == name {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: no local alert %s", ErrInvalidScenario, name)
}

func (r *Runner) advance(duration string) error {
	d, err := time.ParseDuration(duration)
	if err != nil || d < 0 {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidScenario, duration)
	}

	return r.engine.RunUntil(r.engine.Now() + timing.VTimeInNs(d.Nanoseconds()))
}

func (r *Runner) classIndex(name string) (int, error) {
	for i := 0; i < r.handler.Config().NumClasses; i++ {
		if alert.ClassName(i) == name {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: no class %s", ErrInvalidScenario, name)
}

func (r *Runner) expectLine(e *ExpectLine) error {
	if e.Line < 0 || e.Line >= alert.NumEscalationLines {
		return fmt.Errorf("%w: no escalation line %d",
			ErrInvalidScenario, e.Line)
	}

	probe := r.escLines[e.Line]
	if probe.IsHigh() != e.High {
		return fmt.Errorf("%w: escalation line %d is %s",
			ErrExpectation, e.Line, levelName(probe.IsHigh()))
	}

	if e.RisingEdges != nil && probe.NumRisingEdges() != *e.RisingEdges {
		return fmt.Errorf("%w: escalation line %d rose %d times, want %d",
			ErrExpectation, e.Line, probe.NumRisingEdges(), *e.RisingEdges)
	}

	return nil
}

func (r *Runner) expectIRQ(e *ExpectIRQ) error {
	ci, err := r.classIndex(e.Class)
	if err != nil {
		return err
	}

	if r.irqs[ci].IsHigh() != e.High {
		return fmt.Errorf("%w: interrupt of class %s is %s",
			ErrExpectation, e.Class, levelName(r.irqs[ci].IsHigh()))
	}

	return nil
}

func (r *Runner) expectState(e *ExpectState) error {
	ci, err := r.classIndex(e.Class)
	if err != nil {
		return err
	}

	state := r.handler.ClassState(ci)
	if state.String() != e.State {
		return fmt.Errorf("%w: class %s is in %s, want %s",
			ErrExpectation, e.Class, state, e.State)
	}

	if e.Accum != nil && r.handler.Accumulator(ci) != *e.Accum {
		return fmt.Errorf("%w: class %s counted %d alerts, want %d",
			ErrExpectation, e.Class, r.handler.Accumulator(ci), *e.Accum)
	}

	return nil
}

func (r *Runner) expectGuestErrors(n int) error {
	if r.handler.GuestErrors() != n {
		return fmt.Errorf("%w: %d guest errors, want %d",
			ErrExpectation, r.handler.GuestErrors(), n)
	}

	return nil
}

func levelName(high bool) string {
	if high {
		return "high"
	}

	return "low"
}
