// Package alert models the alert handler: it collects alerts from other
// peripherals, sorts them into classes and escalates each class through
// timed phases that drive shared escalation outputs.
package alert

import (
	"log"

	"github.com/sarchlab/otsim/periph"
	"github.com/sarchlab/otsim/periph/regs"
	"github.com/sarchlab/otsim/sim/hooking"
	"github.com/sarchlab/otsim/sim/naming"
	"github.com/sarchlab/otsim/sim/timing"
)

// Comp is an alert handler.
type Comp struct {
	*hooking.HookableBase
	naming.NamedBase

	engine timing.EventScheduler
	freq   timing.Freq
	config Config
	layout regMap
	bank   *regs.Bank

	classes []class

	irqs      []periph.Line
	irqLevels []bool

	escLines  [NumEscalationLines]periph.Line
	escLevels [NumEscalationLines]bool

	lastCrashDump *CrashDump
}

// Config returns the construction parameters of the handler.
func (c *Comp) Config() Config {
	return c.config
}

// NumRegisters returns the size of the register block in words.
func (c *Comp) NumRegisters() int {
	return c.bank.Table().Len()
}

// RegisterName returns the name of register i, or "?" if there is none.
func (c *Comp) RegisterName(i int) string {
	return c.bank.Table().Name(i)
}

// RegisterIndex looks a register up by name.
func (c *Comp) RegisterIndex(name string) (int, bool) {
	return c.bank.Table().Index(name)
}

// GuestErrors returns how many guest errors have been logged.
func (c *Comp) GuestErrors() int {
	return c.bank.GuestErrors()
}

// ReadReg performs a bus read of register i.
func (c *Comp) ReadReg(i int) uint32 {
	value := c.bank.Read(i)

	c.invokeHook(HookPosRegRead, RegAccess{
		Time:   c.engine.Now(),
		Index:  i,
		Name:   c.RegisterName(i),
		Value:  value,
		Offset: uint64(i) * periph.WordSize,
	})

	return value
}

// WriteReg performs a bus write to register i.
func (c *Comp) WriteReg(i int, value uint32) {
	c.invokeHook(HookPosRegWrite, RegAccess{
		Time:   c.engine.Now(),
		Index:  i,
		Name:   c.RegisterName(i),
		Value:  value,
		Offset: uint64(i) * periph.WordSize,
	})

	c.bank.Write(i, value)
}

// ReadMMIO reads the register at a byte offset. Invalid offsets read 0 and
// count as guest errors.
func (c *Comp) ReadMMIO(offset uint64) (uint32, error) {
	i, err := periph.WordIndex(offset, c.NumRegisters())
	if err != nil {
		c.bank.GuestErrorf("read: %v", err)
		return 0, err
	}

	return c.ReadReg(i), nil
}

// WriteMMIO writes the register at a byte offset. Writes to invalid offsets
// are dropped and count as guest errors.
func (c *Comp) WriteMMIO(offset uint64, value uint32) error {
	i, err := periph.WordIndex(offset, c.NumRegisters())
	if err != nil {
		c.bank.GuestErrorf("write 0x%08x: %v", value, err)
		return err
	}

	c.WriteReg(i, value)

	return nil
}

// PeekReg returns the value of register i without the side effects of a
// bus read.
func (c *Comp) PeekReg(i int) uint32 {
	return c.bank.Peek(i)
}

// RegisterDump returns the current value of every register.
func (c *Comp) RegisterDump() []periph.RegisterValue {
	dump := make([]periph.RegisterValue, c.NumRegisters())

	for i := range dump {
		dump[i] = periph.RegisterValue{
			Offset: uint64(i) * periph.WordSize,
			Name:   c.RegisterName(i),
			Value:  c.bank.Peek(i),
		}
	}

	return dump
}

// SignalAlert delivers the level of external alert i.
func (c *Comp) SignalAlert(i int, level bool) {
	if i < 0 || i >= c.config.NumAlerts {
		log.Panicf("%s: alert %d out of range [0, %d)",
			c.Name(), i, c.config.NumAlerts)
	}

	c.signal(alertSource{index: i}, level)
}

// SignalLocalAlert delivers the level of local alert i.
func (c *Comp) SignalLocalAlert(i int, level bool) {
	if i < 0 || i >= NumLocalAlerts {
		log.Panicf("%s: local alert %d out of range [0, %d)",
			c.Name(), i, NumLocalAlerts)
	}

	c.signal(alertSource{local: true, index: i}, level)
}

// A low level never clears the sticky cause.
func (c *Comp) signal(src alertSource, level bool) {
	if !level {
		return
	}

	_, en, classReg, cause := c.layout.sourceRegs(src)
	if c.bank.Cell(en).Peek()&1 == 0 {
		return
	}

	c.bank.Cell(cause).Set(1)

	ci := int(c.bank.Cell(classReg).Peek())
	if ci >= len(c.classes) {
		c.bank.GuestErrorf("%s is assigned to nonexistent class %d",
			c.RegisterName(classReg), ci)
		return
	}

	intr := c.bank.Cell(regIntrState)
	intr.Set(intr.Peek() | 1<<ci)

	c.invokeHook(HookPosAlert, AlertEvent{
		Time:  c.engine.Now(),
		Local: src.local,
		Index: src.index,
		Class: ci,
	})

	if c.classReg(ci, classCtrl)&ctrlEn != 0 {
		acc := c.bank.Cell(c.layout.classReg(ci, classAccumCnt))
		if acc.Peek() < accumMax {
			acc.Set(acc.Peek() + 1)
		}

		c.runFSM(ci, false)
	}

	c.UpdateIRQ()
}

// ClassState returns the escalation state of class ci.
func (c *Comp) ClassState(ci int) ClassState {
	return c.classes[ci].state
}

// Accumulator returns the alert count of class ci.
func (c *Comp) Accumulator(ci int) uint32 {
	return c.classReg(ci, classAccumCnt)
}

// IRQLevel returns the level of the interrupt output of class ci.
func (c *Comp) IRQLevel(ci int) bool {
	return c.irqLevels[ci]
}

// EscalationLevel returns the level of shared escalation output line.
func (c *Comp) EscalationLevel(line int) bool {
	return c.escLevels[line]
}

// LastCrashDump returns the most recent crash dump, or nil if none was
// taken since reset.
func (c *Comp) LastCrashDump() *CrashDump {
	return c.lastCrashDump
}

// Reset returns the handler to its power-on state. Timers are disarmed and
// every output is lowered.
func (c *Comp) Reset() {
	for i := range c.classes {
		cl := &c.classes[i]
		cl.timer.Cancel()
		cl.releaser.Cancel()
		cl.state = StateIdle
		cl.driving = 0
		cl.releasing = 0
	}

	for line := range c.escLines {
		c.refreshEscLine(line)
	}

	c.bank.Reset()
	c.lastCrashDump = nil
	c.UpdateIRQ()
}

func (c *Comp) classReg(ci, reg int) uint32 {
	return c.bank.Cell(c.layout.classReg(ci, reg)).Peek()
}

// ReadVirtual serves the computed class registers.
func (c *Comp) ReadVirtual(reg int) uint32 {
	ci, r := c.classOf(reg)

	switch r {
	case classEscCnt:
		return c.escCount(ci)
	case classState:
		return uint32(c.classes[ci].state)
	default:
		log.Panicf("%s: register %s is not computed",
			c.Name(), c.RegisterName(reg))
	}

	return 0
}

// WriteSpecial serves INTR_STATE and INTR_TEST.
func (c *Comp) WriteSpecial(reg int, value uint32) {
	intr := c.bank.Cell(regIntrState)

	switch reg {
	case regIntrState:
		c.clearInterrupts(value)
		intr.Set(intr.Peek() &^ value)
	case regIntrTest:
		intr.Set(intr.Peek() | value)
	default:
		log.Panicf("%s: register %s has no special write",
			c.Name(), c.RegisterName(reg))
	}
}

// Acknowledging the interrupt of a class stops it only while it is still
// waiting out its timeout.
func (c *Comp) clearInterrupts(value uint32) {
	for ci := range c.classes {
		if value&(1<<ci) == 0 {
			continue
		}

		cl := &c.classes[ci]

		switch cl.state {
		case StateIdle:
		case StateTimeout:
			cl.timer.Cancel()
			c.setState(ci, StateIdle)
		default:
			c.bank.GuestErrorf(
				"clearing INTR_STATE of class %s in state %s does not stop escalation",
				ClassName(ci), cl.state)
		}
	}
}

// UpdateIRQ drives every interrupt output to its current level.
func (c *Comp) UpdateIRQ() {
	pending := c.bank.Cell(regIntrState).Peek() &
		c.bank.Cell(regIntrEnable).Peek()

	for ci := range c.irqLevels {
		level := pending>>ci&1 != 0
		if level == c.irqLevels[ci] {
			continue
		}

		c.irqLevels[ci] = level

		if c.irqs[ci] != nil {
			c.irqs[ci].SetLevel(level)
		}
	}
}

// ClearGroup clears the class whose CLR_SHADOWED register was written.
func (c *Comp) ClearGroup(group int) {
	c.clearClass(group)
}

// ShadowError raises the local shadow update error alert.
func (c *Comp) ShadowError(int) {
	c.signal(alertSource{local: true, index: LocalAlertShadowRegUpdateError}, true)
}

func (c *Comp) classOf(reg int) (ci, r int) {
	off := reg - c.layout.classBase

	return off / classRegCount, off % classRegCount
}
