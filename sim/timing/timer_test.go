package timing

import (
	"github.com/sarchlab/otsim/sim/hooking"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func hookingFunc(f func(pos string)) hooking.Hook {
	return hooking.HookFunc(func(ctx hooking.HookCtx) {
		f(ctx.Pos.Name)
	})
}

var _ = Describe("Timer", func() {
	var (
		engine *SerialEngine
		fired  []VTimeInNs
		timer  *Timer
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		fired = nil
		timer = NewTimer(engine, func(now VTimeInNs) {
			fired = append(fired, now)
		})
	})

	It("should fire once at the deadline", func() {
		timer.Arm(100)

		Expect(engine.RunUntil(99)).To(Succeed())
		Expect(fired).To(BeEmpty())
		Expect(timer.IsArmed()).To(BeTrue())

		Expect(engine.RunUntil(100)).To(Succeed())
		Expect(fired).To(Equal([]VTimeInNs{100}))
		Expect(timer.IsArmed()).To(BeFalse())
	})

	It("should not fire after cancel", func() {
		timer.Arm(100)
		timer.Cancel()
		timer.Cancel()

		Expect(engine.Run()).To(Succeed())
		Expect(fired).To(BeEmpty())
	})

	It("should only move the deadline earlier when anticipating", func() {
		Expect(timer.ArmAnticipate(100)).To(BeTrue())
		Expect(timer.ArmAnticipate(200)).To(BeFalse())
		Expect(timer.ArmAnticipate(50)).To(BeTrue())

		deadline, armed := timer.Deadline()
		Expect(armed).To(BeTrue())
		Expect(deadline).To(Equal(VTimeInNs(50)))

		Expect(engine.Run()).To(Succeed())
		Expect(fired).To(Equal([]VTimeInNs{50}))
	})

	It("should fire a past deadline at the current time", func() {
		Expect(engine.RunUntil(40)).To(Succeed())

		timer.Arm(10)

		Expect(engine.RunUntil(40)).To(Succeed())
		Expect(fired).To(Equal([]VTimeInNs{40}))
	})

	It("should allow re-arming from the callback", func() {
		count := 0
		timer = NewTimer(engine, func(now VTimeInNs) {
			count++
			if count < 3 {
				timer.Arm(now + 10)
			}
		})
		timer.Arm(10)

		Expect(engine.Run()).To(Succeed())
		Expect(count).To(Equal(3))
		Expect(engine.Now()).To(Equal(VTimeInNs(30)))
	})
})

var _ = Describe("Deferred", func() {
	var (
		engine *SerialEngine
		order  []string
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		order = nil
	})

	It("should run after same-time timers", func() {
		d := NewDeferred(engine, func(VTimeInNs) { order = append(order, "deferred") })
		t := NewTimer(engine, func(VTimeInNs) { order = append(order, "timer") })

		d.Schedule()
		t.Arm(0)

		Expect(engine.RunUntil(0)).To(Succeed())
		Expect(order).To(Equal([]string{"timer", "deferred"}))
	})

	It("should coalesce repeated scheduling", func() {
		d := NewDeferred(engine, func(VTimeInNs) { order = append(order, "deferred") })

		d.Schedule()
		d.Schedule()
		Expect(d.IsPending()).To(BeTrue())

		Expect(engine.Run()).To(Succeed())
		Expect(order).To(HaveLen(1))
		Expect(d.IsPending()).To(BeFalse())
	})

	It("should not run after cancel", func() {
		d := NewDeferred(engine, func(VTimeInNs) { order = append(order, "deferred") })

		d.Schedule()
		d.Cancel()

		Expect(engine.Run()).To(Succeed())
		Expect(order).To(BeEmpty())
	})
})
