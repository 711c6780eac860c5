package alert

import (
	"math/bits"
	"strconv"

	"github.com/sarchlab/otsim/periph/regs"
)

// Registers ahead of the alert groups.
const (
	regIntrState = iota
	regIntrEnable
	regIntrTest
	regPingTimerRegwen
	regPingTimeoutCyc
	regPingTimerEn
	numFixedRegs
)

// Registers of a class block, relative to the start of the block.
const (
	classRegwen = iota
	classCtrl
	classClrRegwen
	classClr
	classAccumCnt
	classAccumThresh
	classTimeoutCyc
	classCrashdumpTrigger
	classPhase0Cyc
	classPhase1Cyc
	classPhase2Cyc
	classPhase3Cyc
	classEscCnt
	classState
	classRegCount
)

// Fields of CLASSx_CTRL_SHADOWED.
const (
	ctrlEn       = 1 << 0
	ctrlLock     = 1 << 1
	ctrlEnE0Bit  = 2
	ctrlMapE0Bit = 6
	ctrlMask     = 0x3fff
	ctrlReset    = 0x393c
)

const accumMax = 0xffff

// regMap holds the index of the first register of every group. Indices
// follow the bus order, so register i lives at byte offset 4*i.
type regMap struct {
	numAlerts  int
	numClasses int

	alertRegwen int
	alertEn     int
	alertClass  int
	alertCause  int

	locRegwen int
	locEn     int
	locClass  int
	locCause  int

	classBase int
}

func (m regMap) classReg(class, reg int) int {
	return m.classBase + class*classRegCount + reg
}

// alertSource addresses one alert or local alert in the alert groups.
type alertSource struct {
	local bool
	index int
}

func (m regMap) sourceRegs(src alertSource) (regwen, en, class, cause int) {
	if src.local {
		return m.locRegwen + src.index, m.locEn + src.index,
			m.locClass + src.index, m.locCause + src.index
	}

	return m.alertRegwen + src.index, m.alertEn + src.index,
		m.alertClass + src.index, m.alertCause + src.index
}

// ClassName returns the letter name of class i: A, B, ... Classes beyond Z
// are named by their index.
func ClassName(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('A' + i))
	}

	return strconv.Itoa(i)
}

func classFieldMask(numClasses int) uint32 {
	return uint32(1)<<bits.Len(uint(numClasses-1)) - 1
}

// buildLayout lays out the register map of a handler with the given
// numbers of alerts and classes.
func buildLayout(numAlerts, numClasses int) (regMap, *regs.Table) {
	m := regMap{numAlerts: numAlerts, numClasses: numClasses}
	l := regs.NewLayout()
	classMask := uint32(1)<<numClasses - 1

	l.Add("INTR_STATE", regs.AccessEntry{
		Read:  regs.ReadDirect,
		Write: regs.WriteSpecial,
		Mask:  classMask,
	}.WithPost(regs.PostUpdateIRQ))
	l.Add("INTR_ENABLE", regs.Direct(classMask, 0).WithPost(regs.PostUpdateIRQ))
	l.Add("INTR_TEST", regs.WriteOnly(regs.WriteSpecial, classMask).
		WithPost(regs.PostUpdateIRQ))
	l.Add("PING_TIMER_REGWEN", regs.Lock())
	l.Add("PING_TIMEOUT_CYC_SHADOWED",
		regs.Shadowed(0xffff, 0x100).ProtectedBy(regPingTimerRegwen))
	l.Add("PING_TIMER_EN_SHADOWED",
		regs.Shadowed(1, 0).ProtectedBy(regPingTimerRegwen))

	fieldMask := classFieldMask(numClasses)

	m.alertRegwen, m.alertEn, m.alertClass, m.alertCause =
		addAlertGroups(l, "ALERT", numAlerts, fieldMask)
	m.locRegwen, m.locEn, m.locClass, m.locCause =
		addAlertGroups(l, "LOC_ALERT", NumLocalAlerts, fieldMask)

	m.classBase = l.Len()
	l.SetGroups(m.classBase, classRegCount)

	for c := 0; c < numClasses; c++ {
		addClassBlock(l, "CLASS"+ClassName(c), l.Len())
	}

	return m, l.Build()
}

func addAlertGroups(
	l *regs.Layout,
	prefix string,
	n int,
	fieldMask uint32,
) (regwen, en, class, cause int) {
	regwen = l.AddArray(prefix+"_REGWEN", n, func(int) regs.AccessEntry {
		return regs.Lock()
	})
	en = l.AddArray(prefix+"_EN_SHADOWED", n, func(i int) regs.AccessEntry {
		return regs.Shadowed(1, 0).ProtectedBy(regwen + i)
	})
	class = l.AddArray(prefix+"_CLASS_SHADOWED", n, func(i int) regs.AccessEntry {
		return regs.Shadowed(fieldMask, 0).ProtectedBy(regwen + i)
	})
	cause = l.AddArray(prefix+"_CAUSE", n, func(int) regs.AccessEntry {
		return regs.Sticky(1)
	})

	return regwen, en, class, cause
}

func addClassBlock(l *regs.Layout, prefix string, base int) {
	regwen := base + classRegwen
	clrRegwen := base + classClrRegwen

	l.Add(prefix+"_REGWEN", regs.Lock())
	l.Add(prefix+"_CTRL_SHADOWED",
		regs.Shadowed(ctrlMask, ctrlReset).ProtectedBy(regwen))
	l.Add(prefix+"_CLR_REGWEN", regs.Lock())
	l.Add(prefix+"_CLR_SHADOWED", regs.Shadowed(1, 0).
		ProtectedBy(clrRegwen).
		WithPost(regs.PostClearGroup))
	l.Add(prefix+"_ACCUM_CNT", regs.ReadOnly(regs.ReadDirect))
	l.Add(prefix+"_ACCUM_THRESH_SHADOWED",
		regs.Shadowed(accumMax, 0).ProtectedBy(regwen))
	l.Add(prefix+"_TIMEOUT_CYC_SHADOWED",
		regs.Shadowed(^uint32(0), 0).ProtectedBy(regwen))
	l.Add(prefix+"_CRASHDUMP_TRIGGER_SHADOWED",
		regs.Shadowed(NumEscalationLines-1, 0).ProtectedBy(regwen))

	for p := 0; p < NumEscalationLines; p++ {
		l.Add(prefix+"_PHASE"+strconv.Itoa(p)+"_CYC_SHADOWED",
			regs.Shadowed(^uint32(0), 0).ProtectedBy(regwen))
	}

	l.Add(prefix+"_ESC_CNT", regs.ReadOnly(regs.ReadVirtual))
	l.Add(prefix+"_STATE", regs.ReadOnly(regs.ReadVirtual))
}
