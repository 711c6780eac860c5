package alert

import (
	"bytes"
	"log"

	"github.com/sarchlab/otsim/periph"
	"github.com/sarchlab/otsim/sim/hooking"
	"github.com/sarchlab/otsim/sim/timing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

const ctrlEnabled = ctrlReset | ctrlEn

var _ = Describe("Comp", func() {
	var (
		engine      *timing.SerialEngine
		logBuf      *bytes.Buffer
		escLines    []*periph.Probe
		h           *Comp
		transitions []Transition
		escEdges    []EscalationEdge
	)

	reg := func(name string) int {
		i, ok := h.RegisterIndex(name)
		ExpectWithOffset(1, ok).To(BeTrue(), name)

		return i
	}

	read := func(name string) uint32 {
		return h.ReadReg(reg(name))
	}

	write := func(name string, value uint32) {
		h.WriteReg(reg(name), value)
	}

	writeShadow := func(name string, value uint32) {
		i := reg(name)
		h.WriteReg(i, value)
		h.WriteReg(i, value)
	}

	highLines := func() int {
		n := 0

		for _, l := range escLines {
			if l.IsHigh() {
				n++
			}
		}

		return n
	}

	build := func(irqs ...periph.Line) {
		escLines = nil
		lines := make([]periph.Line, NumEscalationLines)

		for i := range lines {
			p := periph.NewProbe("Esc", engine)
			escLines = append(escLines, p)
			lines[i] = p
		}

		h = MakeBuilder().
			WithEngine(engine).
			WithNumAlerts(2).
			WithNumClasses(4).
			WithFreq(1 * timing.MHz).
			WithLogger(log.New(logBuf, "", 0)).
			WithIRQLines(irqs...).
			WithEscalationLines(lines...).
			Build("Alert")

		h.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			switch item := ctx.Item.(type) {
			case Transition:
				transitions = append(transitions, item)
			case EscalationEdge:
				escEdges = append(escEdges, item)
			}
		}))
	}

	routeAlertToClassA := func() {
		writeShadow("ALERT_EN_SHADOWED_0", 1)
		writeShadow("CLASSA_CTRL_SHADOWED", ctrlEnabled)
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		logBuf = new(bytes.Buffer)
		transitions = nil
		escEdges = nil
		build()
	})

	It("should come out of reset with default values", func() {
		Expect(read("CLASSA_CTRL_SHADOWED")).To(Equal(uint32(ctrlReset)))
		Expect(read("PING_TIMEOUT_CYC_SHADOWED")).To(Equal(uint32(0x100)))
		Expect(read("CLASSB_REGWEN")).To(Equal(uint32(1)))
		Expect(read("CLASSC_STATE")).To(Equal(uint32(StateIdle)))
		Expect(h.GuestErrors()).To(Equal(0))
	})

	It("should return the same value on repeated reads", func() {
		for i := 0; i < h.NumRegisters(); i++ {
			first := h.ReadReg(i)
			Expect(h.ReadReg(i)).To(Equal(first), h.RegisterName(i))
		}
	})

	It("should commit shadow registers on two identical writes", func() {
		write("CLASSA_ACCUM_THRESH_SHADOWED", 7)
		Expect(h.PeekReg(reg("CLASSA_ACCUM_THRESH_SHADOWED"))).
			To(Equal(uint32(0)))

		write("CLASSA_ACCUM_THRESH_SHADOWED", 7)
		Expect(read("CLASSA_ACCUM_THRESH_SHADOWED")).To(Equal(uint32(7)))
	})

	It("should escalate at once when the threshold is 0", func() {
		routeAlertToClassA()

		h.SignalAlert(0, true)

		Expect(h.ClassState(0)).To(Equal(StatePhase0))
		Expect(read("CLASSA_STATE")).To(Equal(uint32(StatePhase0)))
		Expect(read("CLASSA_ACCUM_CNT")).To(Equal(uint32(1)))
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(1)))
		Expect(escLines[0].IsHigh()).To(BeTrue())
		Expect(escLines[0].Edges()).To(Equal([]periph.Edge{{Time: 0, High: true}}))
		Expect(transitions).To(Equal([]Transition{
			{Time: 0, Class: 0, From: StateIdle, To: StatePhase0},
		}))
	})

	It("should escalate when the timeout expires", func() {
		routeAlertToClassA()
		writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", 5)
		writeShadow("CLASSA_TIMEOUT_CYC_SHADOWED", 100)
		writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 1000)

		h.SignalAlert(0, true)
		Expect(h.ClassState(0)).To(Equal(StateTimeout))

		Expect(engine.RunUntil(40_000)).To(Succeed())
		Expect(read("CLASSA_ESC_CNT")).To(Equal(uint32(40)))

		Expect(engine.RunUntil(99_999)).To(Succeed())
		Expect(h.ClassState(0)).To(Equal(StateTimeout))

		Expect(engine.RunUntil(100_000)).To(Succeed())
		Expect(h.ClassState(0)).To(Equal(StatePhase0))
		Expect(escLines[0].Edges()).To(Equal([]periph.Edge{
			{Time: 100_000, High: true},
		}))
	})

	It("should leave the timeout when the threshold is crossed", func() {
		routeAlertToClassA()
		writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", 1)
		writeShadow("CLASSA_TIMEOUT_CYC_SHADOWED", 100)
		writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 1000)

		h.SignalAlert(0, true)
		Expect(h.ClassState(0)).To(Equal(StateTimeout))

		Expect(engine.RunUntil(10_000)).To(Succeed())
		h.SignalAlert(0, true)
		Expect(h.ClassState(0)).To(Equal(StatePhase0))

		Expect(engine.RunUntil(100_000)).To(Succeed())
		Expect(h.ClassState(0)).To(Equal(StatePhase0))
	})

	It("should ignore writes to a locked control register", func() {
		write("CLASSA_REGWEN", 0)

		writeShadow("CLASSA_CTRL_SHADOWED", ctrlEnabled)

		Expect(read("CLASSA_CTRL_SHADOWED")).To(Equal(uint32(ctrlReset)))
		Expect(logBuf.String()).To(ContainSubstring("guest error"))
		Expect(logBuf.String()).To(ContainSubstring("locked by CLASSA_REGWEN"))
		Expect(h.ClassState(0)).To(Equal(StateIdle))
		Expect(transitions).To(BeEmpty())
	})

	It("should escalate through every phase to terminal", func() {
		routeAlertToClassA()
		writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 10)
		writeShadow("CLASSA_PHASE1_CYC_SHADOWED", 20)
		writeShadow("CLASSA_PHASE2_CYC_SHADOWED", 30)
		writeShadow("CLASSA_PHASE3_CYC_SHADOWED", 40)

		h.SignalAlert(0, true)
		Expect(highLines()).To(Equal(1))

		Expect(engine.RunUntil(4_000)).To(Succeed())
		Expect(read("CLASSA_ESC_CNT")).To(Equal(uint32(4)))

		for _, t := range []timing.VTimeInNs{10_000, 30_000, 60_000} {
			Expect(engine.RunUntil(t)).To(Succeed())
			Expect(highLines()).To(Equal(1))
		}

		Expect(engine.RunUntil(100_000)).To(Succeed())
		Expect(h.ClassState(0)).To(Equal(StateTerminal))
		Expect(highLines()).To(Equal(0))

		var visited []ClassState
		for _, t := range transitions {
			visited = append(visited, t.To)
		}

		Expect(visited).To(Equal([]ClassState{
			StatePhase0, StatePhase1, StatePhase2, StatePhase3, StateTerminal,
		}))
		Expect(escEdges).To(Equal([]EscalationEdge{
			{Time: 0, Class: 0, Line: 0, High: true},
			{Time: 10_000, Class: 0, Line: 1, High: true},
			{Time: 10_000, Class: 0, Line: 0, High: false},
			{Time: 30_000, Class: 0, Line: 2, High: true},
			{Time: 30_000, Class: 0, Line: 1, High: false},
			{Time: 60_000, Class: 0, Line: 3, High: true},
			{Time: 60_000, Class: 0, Line: 2, High: false},
			{Time: 100_000, Class: 0, Line: 3, High: false},
		}))

		Expect(engine.Run()).To(Succeed())
		Expect(h.ClassState(0)).To(Equal(StateTerminal))
	})

	It("should not drive disabled severities", func() {
		writeShadow("ALERT_EN_SHADOWED_0", 1)
		writeShadow("CLASSA_CTRL_SHADOWED", ctrlEnabled&^(1<<ctrlEnE0Bit))

		h.SignalAlert(0, true)

		Expect(h.ClassState(0)).To(Equal(StatePhase0))
		Expect(highLines()).To(Equal(0))
	})

	It("should route severities through the map fields", func() {
		writeShadow("ALERT_EN_SHADOWED_0", 1)
		writeShadow("CLASSA_CTRL_SHADOWED",
			ctrlEn|1<<ctrlEnE0Bit|2<<ctrlMapE0Bit)

		h.SignalAlert(0, true)

		Expect(escLines[2].IsHigh()).To(BeTrue())
		Expect(h.EscalationLevel(2)).To(BeTrue())
		Expect(highLines()).To(Equal(1))
	})

	It("should saturate the accumulator", func() {
		routeAlertToClassA()
		writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", accumMax)

		for i := 0; i < accumMax+10; i++ {
			h.SignalAlert(0, true)
		}

		Expect(h.Accumulator(0)).To(Equal(uint32(accumMax)))
		Expect(h.ClassState(0)).To(Equal(StateIdle))
	})

	It("should ignore disabled alerts and low levels", func() {
		writeShadow("CLASSA_CTRL_SHADOWED", ctrlEnabled)

		h.SignalAlert(0, true)
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(0)))

		writeShadow("ALERT_EN_SHADOWED_0", 1)
		h.SignalAlert(0, false)
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(0)))
		Expect(read("INTR_STATE")).To(Equal(uint32(0)))
	})

	It("should keep the cause sticky until written 1", func() {
		routeAlertToClassA()
		writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", 10)

		h.SignalAlert(0, true)
		h.SignalAlert(0, false)
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(1)))

		write("ALERT_CAUSE_0", 0)
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(1)))

		write("ALERT_CAUSE_0", 1)
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(0)))
	})

	It("should only raise the interrupt of a disabled class", func() {
		writeShadow("ALERT_EN_SHADOWED_1", 1)
		writeShadow("ALERT_CLASS_SHADOWED_1", 2)

		h.SignalAlert(1, true)

		Expect(read("INTR_STATE")).To(Equal(uint32(1 << 2)))
		Expect(h.Accumulator(2)).To(Equal(uint32(0)))
		Expect(h.ClassState(2)).To(Equal(StateIdle))
	})

	It("should panic on an unknown alert", func() {
		Expect(func() { h.SignalAlert(2, true) }).To(Panic())
		Expect(func() { h.SignalLocalAlert(NumLocalAlerts, true) }).To(Panic())
	})

	Context("when clearing a class", func() {
		It("should do nothing twice from idle", func() {
			writeShadow("CLASSA_CLR_SHADOWED", 1)
			writeShadow("CLASSA_CLR_SHADOWED", 1)

			Expect(h.ClassState(0)).To(Equal(StateIdle))
			Expect(h.Accumulator(0)).To(Equal(uint32(0)))
			Expect(transitions).To(BeEmpty())
			Expect(escEdges).To(BeEmpty())
			Expect(h.GuestErrors()).To(Equal(0))
		})

		It("should stop an escalation", func() {
			routeAlertToClassA()
			writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 10)
			h.SignalAlert(0, true)

			writeShadow("CLASSA_CLR_SHADOWED", 1)

			Expect(h.ClassState(0)).To(Equal(StateIdle))
			Expect(h.Accumulator(0)).To(Equal(uint32(0)))
			Expect(highLines()).To(Equal(0))

			Expect(engine.Run()).To(Succeed())
			Expect(h.ClassState(0)).To(Equal(StateIdle))
		})

		It("should lower the line of a later phase", func() {
			routeAlertToClassA()
			writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 10)
			writeShadow("CLASSA_PHASE1_CYC_SHADOWED", 10)
			h.SignalAlert(0, true)

			Expect(engine.RunUntil(10_000)).To(Succeed())
			Expect(h.ClassState(0)).To(Equal(StatePhase1))
			Expect(escLines[1].IsHigh()).To(BeTrue())
			writeShadow("CLASSA_CLR_SHADOWED", 1)

			Expect(engine.Run()).To(Succeed())
			Expect(highLines()).To(Equal(0))
			Expect(h.ClassState(0)).To(Equal(StateIdle))
		})

		It("should be refused once a locked class escalates", func() {
			writeShadow("ALERT_EN_SHADOWED_0", 1)
			writeShadow("CLASSA_CTRL_SHADOWED", ctrlEnabled|ctrlLock)

			h.SignalAlert(0, true)
			Expect(read("CLASSA_CLR_REGWEN")).To(Equal(uint32(0)))

			writeShadow("CLASSA_CLR_SHADOWED", 1)

			Expect(h.ClassState(0)).To(Equal(StatePhase0))
			Expect(logBuf.String()).To(ContainSubstring("locked by CLASSA_CLR_REGWEN"))
		})

		It("should be refused while the class is locked", func() {
			writeShadow("CLASSA_CTRL_SHADOWED", ctrlReset|ctrlLock)
			writeShadow("CLASSA_CLR_SHADOWED", 1)

			Expect(logBuf.String()).To(ContainSubstring("escalation is locked"))
		})

		It("should keep a shared line high for the other class", func() {
			routeAlertToClassA()
			writeShadow("ALERT_EN_SHADOWED_1", 1)
			writeShadow("ALERT_CLASS_SHADOWED_1", 1)
			writeShadow("CLASSB_CTRL_SHADOWED", ctrlEnabled)

			h.SignalAlert(0, true)
			h.SignalAlert(1, true)
			Expect(escLines[0].NumRisingEdges()).To(Equal(1))

			writeShadow("CLASSA_CLR_SHADOWED", 1)

			Expect(escLines[0].IsHigh()).To(BeTrue())
			Expect(h.ClassState(1)).To(Equal(StatePhase0))
		})
	})

	Context("when acknowledging interrupts", func() {
		BeforeEach(func() {
			routeAlertToClassA()
			writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", 5)
			writeShadow("CLASSA_TIMEOUT_CYC_SHADOWED", 100)
		})

		It("should stop a running timeout", func() {
			h.SignalAlert(0, true)

			write("INTR_STATE", 1)

			Expect(read("INTR_STATE")).To(Equal(uint32(0)))
			Expect(h.ClassState(0)).To(Equal(StateIdle))

			Expect(engine.Run()).To(Succeed())
			Expect(h.ClassState(0)).To(Equal(StateIdle))
		})

		It("should not stop an escalation", func() {
			writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", 0)
			h.SignalAlert(0, true)

			write("INTR_STATE", 1)

			Expect(h.ClassState(0)).To(Equal(StatePhase0))
			Expect(logBuf.String()).To(ContainSubstring("does not stop escalation"))
		})
	})

	It("should drive interrupt lines on change only", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		irq := NewMockLine(mockCtrl)
		build(irq)
		routeAlertToClassA()
		writeShadow("CLASSA_ACCUM_THRESH_SHADOWED", 10)

		write("INTR_ENABLE", 1)

		irq.EXPECT().SetLevel(true)
		h.SignalAlert(0, true)
		h.SignalAlert(0, true)
		Expect(h.IRQLevel(0)).To(BeTrue())

		irq.EXPECT().SetLevel(false)
		write("INTR_STATE", 1)

		irq.EXPECT().SetLevel(true)
		write("INTR_TEST", 1)

		irq.EXPECT().SetLevel(false)
		write("INTR_ENABLE", 0)

		mockCtrl.Finish()
	})

	It("should turn a shadow write mismatch into a local alert", func() {
		writeShadow("LOC_ALERT_EN_SHADOWED_5", 1)
		writeShadow("LOC_ALERT_CLASS_SHADOWED_5", 1)
		writeShadow("CLASSB_CTRL_SHADOWED", ctrlEnabled)
		writeShadow("CLASSB_ACCUM_THRESH_SHADOWED", 3)

		write("CLASSA_PHASE0_CYC_SHADOWED", 1)
		write("CLASSA_PHASE0_CYC_SHADOWED", 2)

		Expect(read("LOC_ALERT_CAUSE_5")).To(Equal(uint32(1)))
		Expect(read("INTR_STATE")).To(Equal(uint32(1 << 1)))
		Expect(h.Accumulator(1)).To(Equal(uint32(1)))
		Expect(read("CLASSA_PHASE0_CYC_SHADOWED")).To(Equal(uint32(0)))
	})

	It("should capture a crash dump on the trigger phase", func() {
		var hooked []*CrashDump
		h.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosCrashDump {
				hooked = append(hooked, ctx.Item.(*CrashDump))
			}
		}))

		routeAlertToClassA()
		writeShadow("CLASSA_CRASHDUMP_TRIGGER_SHADOWED", 1)
		writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 10)
		writeShadow("CLASSA_PHASE1_CYC_SHADOWED", 10)

		h.SignalAlert(0, true)
		Expect(h.LastCrashDump()).To(BeNil())

		Expect(engine.RunUntil(10_000)).To(Succeed())

		dump := h.LastCrashDump()
		Expect(dump).NotTo(BeNil())
		Expect(hooked).To(Equal([]*CrashDump{dump}))
		Expect(dump.Time).To(Equal(timing.VTimeInNs(10_000)))
		Expect(dump.Class).To(Equal(0))
		Expect(dump.AlertCauses).To(Equal([]bool{true, false}))
		Expect(dump.LocalCauses).To(HaveLen(NumLocalAlerts))
		Expect(dump.Classes[0]).To(Equal(ClassDump{
			AccumCnt: 1,
			EscCnt:   0,
			State:    StatePhase1,
		}))
	})

	It("should serve byte offsets", func() {
		value, err := h.ReadMMIO(uint64(reg("CLASSA_CTRL_SHADOWED")) * 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal(uint32(ctrlReset)))

		Expect(h.WriteMMIO(uint64(reg("INTR_ENABLE"))*4, 3)).To(Succeed())
		Expect(read("INTR_ENABLE")).To(Equal(uint32(3)))

		_, err = h.ReadMMIO(2)
		Expect(err).To(MatchError(periph.ErrMisaligned))

		err = h.WriteMMIO(uint64(h.NumRegisters())*4, 0)
		Expect(err).To(MatchError(periph.ErrOutOfRange))
		Expect(h.GuestErrors()).To(Equal(2))
	})

	It("should read 0 and log a guest error beyond the register map", func() {
		value, err := h.ReadMMIO(uint64(h.NumRegisters()) * 4)

		Expect(err).To(MatchError(periph.ErrOutOfRange))
		Expect(value).To(Equal(uint32(0)))
		Expect(h.GuestErrors()).To(Equal(1))
		Expect(logBuf.String()).To(ContainSubstring("guest error: read"))
	})

	It("should dump every register", func() {
		dump := h.RegisterDump()

		Expect(dump).To(HaveLen(h.NumRegisters()))
		Expect(dump[1]).To(Equal(periph.RegisterValue{
			Offset: 4,
			Name:   "INTR_ENABLE",
			Value:  0,
		}))
	})

	It("should return to defaults on reset", func() {
		routeAlertToClassA()
		writeShadow("CLASSA_PHASE0_CYC_SHADOWED", 10)
		h.SignalAlert(0, true)

		h.Reset()

		Expect(h.ClassState(0)).To(Equal(StateIdle))
		Expect(highLines()).To(Equal(0))
		Expect(read("CLASSA_CTRL_SHADOWED")).To(Equal(uint32(ctrlReset)))
		Expect(read("ALERT_CAUSE_0")).To(Equal(uint32(0)))

		Expect(engine.Run()).To(Succeed())
		Expect(h.ClassState(0)).To(Equal(StateIdle))
	})
})
