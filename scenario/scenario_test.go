package scenario_test

import (
	"bytes"
	"context"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/otsim/periph/alert"
	"github.com/sarchlab/otsim/scenario"
	"github.com/sarchlab/otsim/simulation"
)

func newSimulation() *simulation.Simulation {
	return simulation.MakeBuilder().
		WithoutMonitoring().
		WithoutRecording().
		Build()
}

func run(sc *scenario.Scenario) (*scenario.Runner, error) {
	s := newSimulation()
	defer s.Terminate()

	logger := log.New(new(bytes.Buffer), "", 0)

	r, err := scenario.NewRunner(s, sc, alert.DefaultConfig(), logger)
	Expect(err).NotTo(HaveOccurred())

	return r, r.Run(context.Background())
}

func load(text string) *scenario.Scenario {
	sc, err := scenario.Load(strings.NewReader(text))
	Expect(err).NotTo(HaveOccurred())

	return sc
}

var _ = Describe("Load", func() {
	It("should read hex values and offsets", func() {
		sc := load(`
name: hex
steps:
  - write: {offset: 0x10, value: 0x393d, shadowed: true}
`)

		Expect(sc.Steps).To(HaveLen(1))
		Expect(*sc.Steps[0].Write.Offset).To(Equal(uint64(0x10)))
		Expect(sc.Steps[0].Write.Value).To(Equal(uint32(0x393d)))
		Expect(sc.Steps[0].Write.Shadowed).To(BeTrue())
	})

	It("should reject unknown keys", func() {
		_, err := scenario.Load(strings.NewReader("steps:\n  - jump: 3\n"))

		Expect(err).To(MatchError(scenario.ErrInvalidScenario))
	})

	It("should reject a step with two actions", func() {
		_, err := scenario.Load(strings.NewReader(
			"steps:\n  - reset: true\n    advance: 1us\n"))

		Expect(err).To(MatchError(scenario.ErrInvalidScenario))
		Expect(err.Error()).To(ContainSubstring("step 1"))
	})

	It("should reject an empty step", func() {
		_, err := scenario.Load(strings.NewReader("steps:\n  - {}\n"))

		Expect(err).To(MatchError(scenario.ErrInvalidScenario))
	})

	It("should reject an invalid device name", func() {
		_, err := scenario.Load(strings.NewReader("device: alert-handler\n"))

		Expect(err).To(MatchError(scenario.ErrInvalidScenario))
	})

	It("should fill the configuration from defaults", func() {
		sc := load("classes: 2\n")

		config, err := sc.Config(alert.DefaultConfig())

		Expect(err).NotTo(HaveOccurred())
		Expect(config.NumClasses).To(Equal(2))
		Expect(config.NumAlerts).To(Equal(alert.DefaultConfig().NumAlerts))
		Expect(sc.DeviceName()).To(Equal("AlertHandler"))
	})

	It("should keep zero alerts when given", func() {
		sc := load("alerts: 0\n")

		config, err := sc.Config(alert.DefaultConfig())

		Expect(err).NotTo(HaveOccurred())
		Expect(config.NumAlerts).To(Equal(0))
	})

	It("should reject an invalid configuration", func() {
		sc := load("classes: 33\n")

		_, err := sc.Config(alert.DefaultConfig())

		Expect(err).To(MatchError(scenario.ErrInvalidScenario))
	})
})

var _ = Describe("Runner", func() {
	DescribeTable("should pass the bundled scenarios",
		func(file string) {
			sc, err := scenario.LoadFile("testdata/" + file)
			Expect(err).NotTo(HaveOccurred())

			_, err = run(sc)

			Expect(err).NotTo(HaveOccurred())
		},
		Entry("immediate escalation", "immediate.yaml"),
		Entry("interrupt timeout", "timeout.yaml"),
		Entry("locked configuration", "locked.yaml"),
	)

	It("should report a failed expectation", func() {
		sc := load(`
alerts: 1
classes: 1
steps:
  - read: {reg: CLASSA_CTRL_SHADOWED, expect: 0x1, mask: 0x1}
`)

		_, err := run(sc)

		Expect(err).To(MatchError(scenario.ErrExpectation))
		Expect(err.Error()).To(ContainSubstring("step 1 (read)"))
	})

	It("should report a wrong state", func() {
		sc := load(`
alerts: 1
classes: 1
steps:
  - expect_state: {class: A, state: Phase0}
`)

		_, err := run(sc)

		Expect(err).To(MatchError(scenario.ErrExpectation))
		Expect(err.Error()).To(ContainSubstring("class A is in Idle"))
	})

	It("should reject unknown names", func() {
		for _, step := range []string{
			"write: {reg: NOPE, value: 1}",
			"signal: {local: NOPE}",
			"signal: {alert: 5}",
			"expect_irq: {class: Z, high: true}",
			"expect_line: {line: 4, high: true}",
			"advance: soon",
			"read: {offset: 0x3}",
		} {
			sc := load("alerts: 1\nclasses: 1\nsteps:\n  - " + step + "\n")

			_, err := run(sc)

			Expect(err).To(MatchError(scenario.ErrInvalidScenario), step)
		}
	})

	It("should signal local alerts by name", func() {
		sc := load(`
alerts: 1
classes: 1
steps:
  - write: {reg: LOC_ALERT_EN_SHADOWED_5, value: 1, shadowed: true}
  - signal: {local: SHADOW_REG_UPDATE_ERROR}
  - read: {reg: LOC_ALERT_CAUSE_5, expect: 1}
  - read: {reg: INTR_STATE, expect: 1}
  - reset: true
  - read: {reg: LOC_ALERT_CAUSE_5, expect: 0}
`)

		_, err := run(sc)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should ignore a low level", func() {
		sc := load(`
alerts: 1
classes: 1
steps:
  - write: {reg: ALERT_EN_SHADOWED_0, value: 1, shadowed: true}
  - signal: {alert: 0, level: false}
  - read: {reg: ALERT_CAUSE_0, expect: 0}
`)

		_, err := run(sc)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should stop when the context is cancelled", func() {
		sc := load("steps:\n  - reset: true\n")
		s := newSimulation()
		defer s.Terminate()

		r, err := scenario.NewRunner(s, sc, alert.DefaultConfig(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Handler().Name()).To(Equal("AlertHandler"))
		Expect(r.EscalationProbe(2).Name()).To(Equal("AlertHandler.Esc[2]"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(r.Run(ctx)).To(MatchError(context.Canceled))
	})
})
