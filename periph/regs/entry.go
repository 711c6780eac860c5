package regs

// ReadKind selects how a register responds to a bus read.
type ReadKind uint8

// Read behaviours.
const (
	// ReadDirect returns the stored value.
	ReadDirect ReadKind = iota
	// ReadShadow returns the committed value and aborts a pending
	// two-phase write.
	ReadShadow
	// ReadWriteOnly returns 0 and logs a guest error.
	ReadWriteOnly
	// ReadVirtual asks the device to compute the value.
	ReadVirtual
)

// WriteKind selects how a register responds to a bus write.
type WriteKind uint8

// Write behaviours. The written value is masked before any of them applies.
const (
	// WriteDirect stores the value.
	WriteDirect WriteKind = iota
	// WriteShadow runs the two-phase shadow protocol.
	WriteShadow
	// WriteReadOnly ignores the value and logs a guest error.
	WriteReadOnly
	// WriteRW0C clears the stored bits that are written as 0.
	WriteRW0C
	// WriteRW1C clears the stored bits that are written as 1.
	WriteRW1C
	// WriteRW1S sets the stored bits that are written as 1.
	WriteRW1S
	// WriteSpecial hands the value to the device.
	WriteSpecial
)

// PostAction is a set of side effects run after a write.
type PostAction uint8

// Post-write side effects.
const (
	// PostUpdateIRQ recomputes the device's interrupt lines.
	PostUpdateIRQ PostAction = 1 << iota
	// PostClearGroup clears the register group the register belongs to,
	// when the write took effect with a non-zero value.
	PostClearGroup
)

// AccessEntry describes one 32-bit register.
type AccessEntry struct {
	Read      ReadKind
	Write     WriteKind
	Mask      uint32
	Reset     uint32
	Protect   int
	Protected bool
	Post      PostAction
}

// Direct returns a plain read/write register.
func Direct(mask, reset uint32) AccessEntry {
	return AccessEntry{Read: ReadDirect, Write: WriteDirect, Mask: mask, Reset: reset}
}

// Shadowed returns a two-phase shadow register.
func Shadowed(mask, reset uint32) AccessEntry {
	return AccessEntry{Read: ReadShadow, Write: WriteShadow, Mask: mask, Reset: reset}
}

// ReadOnly returns a register the bus can only read.
func ReadOnly(read ReadKind) AccessEntry {
	return AccessEntry{Read: read, Write: WriteReadOnly}
}

// WriteOnly returns a register the bus can only write.
func WriteOnly(write WriteKind, mask uint32) AccessEntry {
	return AccessEntry{Read: ReadWriteOnly, Write: write, Mask: mask}
}

// Lock returns a write-enable register: reads back 1 until software writes
// 0, after which it stays 0 until reset.
func Lock() AccessEntry {
	return AccessEntry{Read: ReadDirect, Write: WriteRW0C, Mask: 1, Reset: 1}
}

// Sticky returns a status register whose bits are cleared by writing 1.
func Sticky(mask uint32) AccessEntry {
	return AccessEntry{Read: ReadDirect, Write: WriteRW1C, Mask: mask}
}

// ProtectedBy makes writes depend on bit 0 of register reg.
func (e AccessEntry) ProtectedBy(reg int) AccessEntry {
	e.Protect = reg
	e.Protected = true

	return e
}

// WithPost adds post-write side effects.
func (e AccessEntry) WithPost(post PostAction) AccessEntry {
	e.Post |= post

	return e
}
