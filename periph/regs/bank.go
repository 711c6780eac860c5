package regs

import (
	"log"
)

// Device is the part of a peripheral a Bank calls back into.
type Device interface {
	// ReadVirtual computes the value of a ReadVirtual register.
	ReadVirtual(reg int) uint32

	// WriteSpecial applies a masked write to a WriteSpecial register.
	WriteSpecial(reg int, value uint32)

	// UpdateIRQ recomputes the interrupt lines.
	UpdateIRQ()

	// ClearGroup runs the clear operation of a register group.
	ClearGroup(group int)

	// ShadowError reports a mismatching second write to a shadow register.
	ShadowError(reg int)
}

// A Bank is the register storage of one device instance together with the
// dispatch logic of its Table. Bus misuse is logged as a guest error and
// otherwise ignored; it never fails the access.
type Bank struct {
	name        string
	table       *Table
	cells       []Shadow
	device      Device
	logger      *log.Logger
	guestErrors int
}

// NewBank allocates storage for every register of the table and resets it.
func NewBank(name string, table *Table, device Device, logger *log.Logger) *Bank {
	if logger == nil {
		logger = log.Default()
	}

	b := &Bank{
		name:   name,
		table:  table,
		cells:  make([]Shadow, table.Len()),
		device: device,
		logger: logger,
	}
	b.Reset()

	return b
}

// Table returns the register map of the bank.
func (b *Bank) Table() *Table {
	return b.table
}

// Reset loads the reset value of every register.
func (b *Bank) Reset() {
	for i := range b.cells {
		b.cells[i].Init(b.table.entries[i].Reset)
	}
}

// Cell gives the device direct access to the storage of a register.
func (b *Bank) Cell(reg int) *Shadow {
	return &b.cells[reg]
}

// GuestErrors returns how many guest errors the bank has logged.
func (b *Bank) GuestErrors() int {
	return b.guestErrors
}

// GuestErrorf logs a guest error on behalf of the device.
func (b *Bank) GuestErrorf(format string, args ...any) {
	b.guestErrors++
	b.logger.Printf("%s: guest error: "+format, append([]any{b.name}, args...)...)
}

func (b *Bank) inBounds(reg int) bool {
	return reg >= 0 && reg < len(b.cells)
}

// Read performs a bus read of register reg.
func (b *Bank) Read(reg int) uint32 {
	if !b.inBounds(reg) {
		b.GuestErrorf("read from invalid register %d", reg)
		return 0
	}

	cell := &b.cells[reg]

	switch b.table.entries[reg].Read {
	case ReadDirect:
		return cell.Peek()
	case ReadShadow:
		return cell.Read()
	case ReadWriteOnly:
		b.GuestErrorf("read from write-only register %s", b.table.names[reg])
		return 0
	case ReadVirtual:
		return b.device.ReadVirtual(reg)
	default:
		log.Panicf("register %s has unknown read kind %d",
			b.table.names[reg], b.table.entries[reg].Read)
	}

	return 0
}

// Peek returns what a read of reg would return, without side effects and
// without logging.
func (b *Bank) Peek(reg int) uint32 {
	if !b.inBounds(reg) {
		return 0
	}

	switch b.table.entries[reg].Read {
	case ReadWriteOnly:
		return 0
	case ReadVirtual:
		return b.device.ReadVirtual(reg)
	default:
		return b.cells[reg].Peek()
	}
}

// Write performs a bus write of value to register reg.
func (b *Bank) Write(reg int, value uint32) {
	if !b.inBounds(reg) {
		b.GuestErrorf("write 0x%08x to invalid register %d", value, reg)
		return
	}

	e := b.table.entries[reg]
	value &= e.Mask

	if e.Protected && b.cells[e.Protect].Peek()&1 == 0 {
		b.GuestErrorf("write 0x%08x to %s rejected, locked by %s",
			value, b.table.names[reg], b.table.names[e.Protect])
		return
	}

	applied := b.apply(reg, e, value)

	if e.Post&PostUpdateIRQ != 0 {
		b.device.UpdateIRQ()
	}

	if e.Post&PostClearGroup != 0 && applied && value != 0 {
		b.device.ClearGroup(b.table.Group(reg))
	}
}

func (b *Bank) apply(reg int, e AccessEntry, value uint32) bool {
	cell := &b.cells[reg]

	switch e.Write {
	case WriteDirect:
		cell.Set(value)
	case WriteShadow:
		return b.applyShadow(reg, value)
	case WriteReadOnly:
		b.GuestErrorf("write 0x%08x to read-only register %s",
			value, b.table.names[reg])
		return false
	case WriteRW0C:
		cell.Set(cell.Peek() & value)
	case WriteRW1C:
		cell.Set(cell.Peek() &^ value)
	case WriteRW1S:
		cell.Set(cell.Peek() | value)
	case WriteSpecial:
		b.device.WriteSpecial(reg, value)
	default:
		log.Panicf("register %s has unknown write kind %d",
			b.table.names[reg], e.Write)
	}

	return true
}

func (b *Bank) applyShadow(reg int, value uint32) bool {
	switch b.cells[reg].Write(value) {
	case ShadowStaged:
		return false
	case ShadowCommitted:
		return true
	default:
		b.GuestErrorf("shadow register %s: second write 0x%08x does not match",
			b.table.names[reg], value)
		b.device.ShadowError(reg)

		return false
	}
}
