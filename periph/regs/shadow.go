// Package regs models the register files shared by the peripheral family:
// two-phase shadow registers and a table-driven register bank.
package regs

// ShadowStatus is the outcome of a write to a shadow register.
type ShadowStatus int

// Outcomes of Shadow.Write.
const (
	// ShadowStaged means the value was held back until a confirming write.
	ShadowStaged ShadowStatus = iota
	// ShadowCommitted means the value matched the staged one and took effect.
	ShadowCommitted
	// ShadowError means the value did not match the staged one and was
	// discarded.
	ShadowError
)

func (s ShadowStatus) String() string {
	switch s {
	case ShadowStaged:
		return "staged"
	case ShadowCommitted:
		return "committed"
	case ShadowError:
		return "error"
	default:
		return "unknown"
	}
}

// Shadow is a register cell that needs two identical consecutive writes to
// change. Plain registers use the same cell through Set and Peek and never
// stage anything.
type Shadow struct {
	committed     uint32
	staged        uint32
	stagedPresent bool
}

// Init sets the committed value and drops any staged value.
func (s *Shadow) Init(value uint32) {
	s.committed = value
	s.staged = 0
	s.stagedPresent = false
}

// Write stages value, or commits it if it matches the staged value. A
// mismatching write is discarded and the staged value is kept.
func (s *Shadow) Write(value uint32) ShadowStatus {
	if !s.stagedPresent {
		s.staged = value
		s.stagedPresent = true

		return ShadowStaged
	}

	if value != s.staged {
		return ShadowError
	}

	s.committed = value
	s.stagedPresent = false

	return ShadowCommitted
}

// Read aborts any pending two-phase write and returns the committed value.
func (s *Shadow) Read() uint32 {
	s.stagedPresent = false

	return s.committed
}

// Peek returns the committed value without side effects.
func (s *Shadow) Peek() uint32 {
	return s.committed
}

// Set overwrites the committed value, bypassing the two-phase protocol.
func (s *Shadow) Set(value uint32) {
	s.committed = value
}

// IsStaged reports whether a first write is waiting for confirmation.
func (s *Shadow) IsStaged() bool {
	return s.stagedPresent
}
