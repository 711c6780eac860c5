package alert

import (
	"log"

	"github.com/sarchlab/otsim/periph"
	"github.com/sarchlab/otsim/periph/regs"
	"github.com/sarchlab/otsim/sim/hooking"
	"github.com/sarchlab/otsim/sim/naming"
	"github.com/sarchlab/otsim/sim/timing"
)

// Builder constructs alert handlers.
type Builder struct {
	config   Config
	engine   timing.EventScheduler
	logger   *log.Logger
	irqs     []periph.Line
	escLines [NumEscalationLines]periph.Line
}

// MakeBuilder returns a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{config: DefaultConfig()}
}

// WithEngine sets the engine that runs the handler's timers.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithConfig replaces the whole configuration.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithNumAlerts sets the number of external alert sources.
func (b Builder) WithNumAlerts(n int) Builder {
	b.config.NumAlerts = n
	return b
}

// WithNumClasses sets the number of classes.
func (b Builder) WithNumClasses(n int) Builder {
	b.config.NumClasses = n
	return b
}

// WithFreq sets the peripheral clock frequency.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.config.Freq = freq
	return b
}

// WithLogger sets the logger guest errors are reported to.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithIRQLines sets the interrupt outputs, one per class. Classes without
// a line are not observed.
func (b Builder) WithIRQLines(lines ...periph.Line) Builder {
	b.irqs = lines
	return b
}

// WithEscalationLines sets the shared escalation outputs, severity 0 first.
func (b Builder) WithEscalationLines(lines ...periph.Line) Builder {
	if len(lines) > NumEscalationLines {
		log.Panicf("at most %d escalation lines, got %d",
			NumEscalationLines, len(lines))
	}

	b.escLines = [NumEscalationLines]periph.Line{}
	copy(b.escLines[:], lines)

	return b
}

// Build creates an alert handler in its reset state.
func (b Builder) Build(name string) *Comp {
	naming.NameMustBeValid(name)
	b.parametersMustBeValid()

	c := &Comp{
		HookableBase: hooking.NewHookableBase(),
		NamedBase:    naming.MakeNamedBase(name),
		engine:       b.engine,
		freq:         b.config.Freq,
		config:       b.config,
		escLines:     b.escLines,
	}

	var table *regs.Table
	c.layout, table = buildLayout(b.config.NumAlerts, b.config.NumClasses)
	c.bank = regs.NewBank(name, table, c, b.logger)

	c.irqs = make([]periph.Line, b.config.NumClasses)
	copy(c.irqs, b.irqs)
	c.irqLevels = make([]bool, b.config.NumClasses)

	c.classes = make([]class, b.config.NumClasses)
	for i := range c.classes {
		c.classes[i] = c.newClass(i)
	}

	c.Reset()

	return c
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		log.Panic("alert handler requires an engine")
	}

	if err := b.config.Validate(); err != nil {
		log.Panic(err)
	}

	if len(b.irqs) > b.config.NumClasses {
		log.Panicf("%d IRQ lines for %d classes",
			len(b.irqs), b.config.NumClasses)
	}
}
