// Package periph defines what a memory-mapped peripheral model exposes to
// the host: a 32-bit register bus and level-sensitive output lines.
package periph

import (
	"errors"
	"fmt"
)

// WordSize is the only bus access width the peripherals accept.
const WordSize = 4

var (
	// ErrMisaligned is returned for bus accesses that are not 4-byte aligned.
	ErrMisaligned = errors.New("periph: misaligned access")

	// ErrOutOfRange is returned for bus accesses outside a register block.
	ErrOutOfRange = errors.New("periph: offset out of range")
)

// MMIOHandler serves 32-bit reads and writes at byte offsets within a
// device's register block.
type MMIOHandler interface {
	ReadMMIO(offset uint64) (uint32, error)
	WriteMMIO(offset uint64, value uint32) error
}

// Line is an output wire driven by a device, such as an interrupt request
// or an escalation signal.
type Line interface {
	SetLevel(high bool)
}

// LineFunc adapts a function to the Line interface.
type LineFunc func(high bool)

// SetLevel calls f.
func (f LineFunc) SetLevel(high bool) {
	f(high)
}

// RegisterValue is one entry of a register dump.
type RegisterValue struct {
	Offset uint64 `json:"offset"`
	Name   string `json:"name"`
	Value  uint32 `json:"value"`
}

// WordIndex converts a byte offset to a register index, checking alignment
// and the size of the block.
func WordIndex(offset uint64, numRegs int) (int, error) {
	if offset%WordSize != 0 {
		return 0, fmt.Errorf("%w: 0x%x", ErrMisaligned, offset)
	}

	index := offset / WordSize
	if index >= uint64(numRegs) {
		return 0, fmt.Errorf("%w: 0x%x", ErrOutOfRange, offset)
	}

	return int(index), nil
}
