package alert

import (
	"fmt"

	"github.com/sarchlab/otsim/sim/hooking"
	"github.com/sarchlab/otsim/sim/timing"
)

var (
	// HookPosRegRead marks a bus read. The item is a RegAccess.
	HookPosRegRead = &hooking.HookPos{Name: "RegRead"}

	// HookPosRegWrite marks a bus write. The item is a RegAccess carrying
	// the value as written by the bus.
	HookPosRegWrite = &hooking.HookPos{Name: "RegWrite"}

	// HookPosAlert marks an accepted alert. The item is an AlertEvent.
	HookPosAlert = &hooking.HookPos{Name: "Alert"}

	// HookPosClassTransition marks a class state change. The item is a
	// Transition.
	HookPosClassTransition = &hooking.HookPos{Name: "ClassTransition"}

	// HookPosEscalation marks a level change of an escalation output. The
	// item is an EscalationEdge.
	HookPosEscalation = &hooking.HookPos{Name: "Escalation"}

	// HookPosCrashDump marks a crash dump capture. The item is a
	// *CrashDump.
	HookPosCrashDump = &hooking.HookPos{Name: "CrashDump"}
)

// RegAccess describes one bus access.
type RegAccess struct {
	Time   timing.VTimeInNs
	Index  int
	Name   string
	Value  uint32
	Offset uint64
}

func (a RegAccess) String() string {
	return fmt.Sprintf("%s @0x%03x = 0x%08x", a.Name, a.Offset, a.Value)
}

// AlertEvent describes an accepted alert.
type AlertEvent struct {
	Time  timing.VTimeInNs
	Local bool
	Index int
	Class int
}

func (e AlertEvent) String() string {
	source := fmt.Sprintf("alert %d", e.Index)
	if e.Local {
		source = "local alert " + LocalAlertName(e.Index)
	}

	return source + " -> class " + ClassName(e.Class)
}

// Transition describes a class state change.
type Transition struct {
	Time  timing.VTimeInNs
	Class int
	From  ClassState
	To    ClassState
}

func (t Transition) String() string {
	return fmt.Sprintf("class %s %s -> %s", ClassName(t.Class), t.From, t.To)
}

// EscalationEdge describes a class raising or releasing an escalation line.
type EscalationEdge struct {
	Time  timing.VTimeInNs
	Class int
	Line  int
	High  bool
}

func (e EscalationEdge) String() string {
	action := "releases"
	if e.High {
		action = "raises"
	}

	return fmt.Sprintf("class %s %s escalation line %d",
		ClassName(e.Class), action, e.Line)
}

// ClassDump is the part of a crash dump that belongs to one class.
type ClassDump struct {
	AccumCnt uint32
	EscCnt   uint32
	State    ClassState
}

// A CrashDump is the snapshot the handler takes when a class enters the
// phase selected by its CRASHDUMP_TRIGGER register.
type CrashDump struct {
	Time        timing.VTimeInNs
	Class       int
	AlertCauses []bool
	LocalCauses []bool
	Classes     []ClassDump
}

func (d *CrashDump) String() string {
	return fmt.Sprintf("crash dump of class %s", ClassName(d.Class))
}

func (c *Comp) invokeHook(pos *hooking.HookPos, item any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   item,
	})
}
