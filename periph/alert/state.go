package alert

import "strconv"

// ClassState is the escalation state of a class, as read back through the
// class's STATE register.
type ClassState uint32

// Class states.
const (
	StateIdle ClassState = iota
	StateTimeout
	StateFsmError
	StateTerminal
	StatePhase0
	StatePhase1
	StatePhase2
	StatePhase3
)

func (s ClassState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateTimeout:
		return "Timeout"
	case StateFsmError:
		return "FsmError"
	case StateTerminal:
		return "Terminal"
	case StatePhase0, StatePhase1, StatePhase2, StatePhase3:
		return "Phase" + strconv.Itoa(int(s-StatePhase0))
	default:
		return "ClassState(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsPhase reports whether s is one of the four escalation phases.
func (s ClassState) IsPhase() bool {
	return s >= StatePhase0 && s <= StatePhase3
}

// Phase returns the escalation phase index of s. It is only meaningful if
// IsPhase is true.
func (s ClassState) Phase() int {
	return int(s - StatePhase0)
}

func phaseState(phase int) ClassState {
	return StatePhase0 + ClassState(phase)
}
