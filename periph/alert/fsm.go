package alert

import (
	"log"

	"github.com/sarchlab/otsim/sim/timing"
)

// class is the runtime state of one class that does not live in registers.
type class struct {
	index    int
	state    ClassState
	timer    *timing.Timer
	releaser *timing.Deferred

	// driving holds one bit per escalation line the class keeps high.
	driving uint32

	// releasing holds the lines to lower on the next tick.
	releasing uint32
}

func (c *Comp) newClass(ci int) class {
	return class{
		index: ci,
		state: StateIdle,
		timer: timing.NewTimer(c.engine, func(timing.VTimeInNs) {
			c.runFSM(ci, true)
		}),
		releaser: timing.NewDeferred(c.engine, func(timing.VTimeInNs) {
			c.releaseEscalation(ci)
		}),
	}
}

func (c *Comp) accuTrig(ci int) bool {
	return c.classReg(ci, classAccumCnt) > c.classReg(ci, classAccumThresh)
}

func (c *Comp) runFSM(ci int, fromTimer bool) {
	cl := &c.classes[ci]

	switch cl.state {
	case StateIdle:
		if c.accuTrig(ci) {
			c.enterPhase(ci, 0)
		} else if timeout := c.classReg(ci, classTimeoutCyc); timeout != 0 {
			c.setState(ci, StateTimeout)
			c.setClassTimer(ci, timeout)
		}
	case StateTimeout:
		if fromTimer || c.accuTrig(ci) {
			cl.timer.Cancel()
			c.enterPhase(ci, 0)
		}
	case StatePhase0, StatePhase1, StatePhase2:
		if fromTimer {
			c.advancePhase(ci)
		}
	case StatePhase3:
		if fromTimer {
			c.scheduleRelease(ci, cl.driving)
			c.setState(ci, StateTerminal)
		}
	case StateTerminal:
	default:
		log.Panicf("%s: class %s in invalid state %s",
			c.Name(), ClassName(ci), cl.state)
	}
}

func (c *Comp) enterPhase(ci, phase int) {
	c.setState(ci, phaseState(phase))
	c.raiseEscalation(ci, phase)
	c.setClassTimer(ci, c.classReg(ci, classPhase0Cyc+phase))

	if phase == 0 && c.classReg(ci, classCtrl)&ctrlLock != 0 {
		c.bank.Cell(c.layout.classReg(ci, classClrRegwen)).Set(0)
	}

	if int(c.classReg(ci, classCrashdumpTrigger)) == phase {
		c.captureCrashDump(ci)
	}
}

// The outgoing phase's line stays high until the next tick so that it
// overlaps the incoming one.
func (c *Comp) advancePhase(ci int) {
	cl := &c.classes[ci]
	previous := cl.driving
	next := cl.state.Phase() + 1

	c.enterPhase(ci, next)

	c.scheduleRelease(ci, previous&^c.escalationBit(ci, next))
}

func (c *Comp) setState(ci int, state ClassState) {
	cl := &c.classes[ci]
	if cl.state == state {
		return
	}

	from := cl.state
	cl.state = state

	c.invokeHook(HookPosClassTransition, Transition{
		Time:  c.engine.Now(),
		Class: ci,
		From:  from,
		To:    state,
	})
}

// setClassTimer only ever moves the class deadline earlier.
func (c *Comp) setClassTimer(ci int, cycles uint32) {
	deadline := c.freq.NCyclesLater(uint64(cycles), c.engine.Now())
	c.classes[ci].timer.ArmAnticipate(deadline)
}

// escCount returns how many cycles of the current timeout or phase have
// elapsed.
func (c *Comp) escCount(ci int) uint32 {
	cl := &c.classes[ci]

	deadline, armed := cl.timer.Deadline()
	if !armed {
		return 0
	}

	var cycles uint32

	switch {
	case cl.state == StateTimeout:
		cycles = c.classReg(ci, classTimeoutCyc)
	case cl.state.IsPhase():
		cycles = c.classReg(ci, classPhase0Cyc+cl.state.Phase())
	default:
		return 0
	}

	left := deadline - c.engine.Now()

	remaining := c.freq.NsToCycles(left)
	if c.freq.CyclesToNs(remaining) < left {
		remaining++
	}

	if remaining >= uint64(cycles) {
		return 0
	}

	return cycles - uint32(remaining)
}

// escalationBit returns the line bit severity phase drives, or 0 if the
// severity is disabled in the class control register.
func (c *Comp) escalationBit(ci, phase int) uint32 {
	ctrl := c.classReg(ci, classCtrl)
	if ctrl&(1<<(ctrlEnE0Bit+phase)) == 0 {
		return 0
	}

	line := ctrl >> (ctrlMapE0Bit + 2*phase) & (NumEscalationLines - 1)

	return 1 << line
}

func (c *Comp) raiseEscalation(ci, phase int) {
	bit := c.escalationBit(ci, phase)
	if bit == 0 {
		return
	}

	for line := 0; line < NumEscalationLines; line++ {
		if bit&(1<<line) != 0 {
			c.driveEscalation(ci, line, true)
		}
	}
}

func (c *Comp) scheduleRelease(ci int, lines uint32) {
	if lines == 0 {
		return
	}

	cl := &c.classes[ci]
	cl.releasing |= lines
	cl.releaser.Schedule()
}

func (c *Comp) releaseEscalation(ci int) {
	cl := &c.classes[ci]
	lines := cl.releasing
	cl.releasing = 0

	for line := 0; line < NumEscalationLines; line++ {
		if lines&(1<<line) != 0 {
			c.driveEscalation(ci, line, false)
		}
	}
}

func (c *Comp) driveEscalation(ci, line int, high bool) {
	cl := &c.classes[ci]
	bit := uint32(1) << line

	if (cl.driving&bit != 0) == high {
		return
	}

	if high {
		cl.driving |= bit
	} else {
		cl.driving &^= bit
	}

	c.invokeHook(HookPosEscalation, EscalationEdge{
		Time:  c.engine.Now(),
		Class: ci,
		Line:  line,
		High:  high,
	})

	c.refreshEscLine(line)
}

// A shared escalation line is high while any class drives it.
func (c *Comp) refreshEscLine(line int) {
	bit := uint32(1) << line
	level := false

	for i := range c.classes {
		if c.classes[i].driving&bit != 0 {
			level = true
			break
		}
	}

	if level == c.escLevels[line] {
		return
	}

	c.escLevels[line] = level

	if c.escLines[line] != nil {
		c.escLines[line].SetLevel(level)
	}
}

func (c *Comp) clearClass(ci int) {
	cl := &c.classes[ci]

	if cl.state == StateFsmError {
		c.bank.GuestErrorf("cannot clear class %s in state %s",
			ClassName(ci), cl.state)
		return
	}

	if c.classReg(ci, classCtrl)&ctrlLock != 0 {
		c.bank.GuestErrorf("cannot clear class %s, escalation is locked",
			ClassName(ci))
		return
	}

	cl.timer.Cancel()
	cl.releaser.Cancel()
	cl.releasing = 0

	for line := 0; line < NumEscalationLines; line++ {
		c.driveEscalation(ci, line, false)
	}

	c.bank.Cell(c.layout.classReg(ci, classAccumCnt)).Set(0)
	c.setState(ci, StateIdle)
}

func (c *Comp) captureCrashDump(ci int) {
	dump := &CrashDump{
		Time:        c.engine.Now(),
		Class:       ci,
		AlertCauses: make([]bool, c.config.NumAlerts),
		LocalCauses: make([]bool, NumLocalAlerts),
		Classes:     make([]ClassDump, len(c.classes)),
	}

	for i := range dump.AlertCauses {
		dump.AlertCauses[i] = c.bank.Cell(c.layout.alertCause+i).Peek() != 0
	}

	for i := range dump.LocalCauses {
		dump.LocalCauses[i] = c.bank.Cell(c.layout.locCause+i).Peek() != 0
	}

	for i := range dump.Classes {
		dump.Classes[i] = ClassDump{
			AccumCnt: c.classReg(i, classAccumCnt),
			EscCnt:   c.escCount(i),
			State:    c.classes[i].state,
		}
	}

	c.lastCrashDump = dump
	c.invokeHook(HookPosCrashDump, dump)
}
