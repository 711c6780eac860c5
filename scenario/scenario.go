// Package scenario reads YAML scripts that drive an alert handler through
// register accesses, alert signals and the passing of time, and checks the
// resulting outputs.
//
// A scenario looks like this:
//
//	name: immediate escalation
//	alerts: 4
//	classes: 4
//	pclk_hz: 1000000
//	steps:
//	  - write: {reg: ALERT_EN_SHADOWED_0, value: 1, shadowed: true}
//	  - write: {reg: CLASSA_CTRL_SHADOWED, value: 0x393d, shadowed: true}
//	  - signal: {alert: 0}
//	  - expect_state: {class: A, state: Phase0}
//	  - expect_line: {line: 0, high: true}
//	  - advance: 10us
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/otsim/periph/alert"
	"github.com/sarchlab/otsim/sim/naming"
	"github.com/sarchlab/otsim/sim/timing"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidScenario is returned for scenarios that cannot be run.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrExpectation is returned when the device does not behave as a step
	// expects.
	ErrExpectation = errors.New("expectation failed")
)

// A Scenario is a device configuration plus the steps to run on it.
type Scenario struct {
	Name    string `yaml:"name"`
	Device  string `yaml:"device"`
	Alerts  *int   `yaml:"alerts"`
	Classes int    `yaml:"classes"`
	PclkHz  uint64 `yaml:"pclk_hz"`
	Steps   []Step `yaml:"steps"`
}

// A Step does exactly one thing.
type Step struct {
	Write             *Write       `yaml:"write,omitempty"`
	Read              *Read        `yaml:"read,omitempty"`
	Signal            *Signal      `yaml:"signal,omitempty"`
	Advance           string       `yaml:"advance,omitempty"`
	Reset             bool         `yaml:"reset,omitempty"`
	ExpectLine        *ExpectLine  `yaml:"expect_line,omitempty"`
	ExpectIRQ         *ExpectIRQ   `yaml:"expect_irq,omitempty"`
	ExpectState       *ExpectState `yaml:"expect_state,omitempty"`
	ExpectGuestErrors *int         `yaml:"expect_guest_errors,omitempty"`
}

// RegRef names a register either by name or by byte offset.
type RegRef struct {
	Reg    string  `yaml:"reg,omitempty"`
	Offset *uint64 `yaml:"offset,omitempty"`
}

func (r RegRef) String() string {
	if r.Reg != "" {
		return r.Reg
	}

	if r.Offset != nil {
		return fmt.Sprintf("@0x%03x", *r.Offset)
	}

	return "<no register>"
}

// Write stores a value. A shadowed write is issued twice.
type Write struct {
	RegRef   `yaml:",inline"`
	Value    uint32 `yaml:"value"`
	Shadowed bool   `yaml:"shadowed,omitempty"`
}

// Read loads a register and optionally compares the masked value.
type Read struct {
	RegRef `yaml:",inline"`
	Expect *uint32 `yaml:"expect,omitempty"`
	Mask   *uint32 `yaml:"mask,omitempty"`
}

// Signal drives an alert input. Exactly one of Alert and Local is set.
// Level defaults to high.
type Signal struct {
	Alert *int   `yaml:"alert,omitempty"`
	Local string `yaml:"local,omitempty"`
	Level *bool  `yaml:"level,omitempty"`
}

// ExpectLine checks an escalation output.
type ExpectLine struct {
	Line        int  `yaml:"line"`
	High        bool `yaml:"high"`
	RisingEdges *int `yaml:"rising_edges,omitempty"`
}

// ExpectIRQ checks the interrupt output of a class.
type ExpectIRQ struct {
	Class string `yaml:"class"`
	High  bool   `yaml:"high"`
}

// ExpectState checks the state and optionally the accumulator of a class.
type ExpectState struct {
	Class string  `yaml:"class"`
	State string  `yaml:"state"`
	Accum *uint32 `yaml:"accum,omitempty"`
}

// Kind names the action of the step. It fails unless exactly one action is
// set.
func (s Step) Kind() (string, error) {
	kinds := []struct {
		name string
		set  bool
	}{
		{"write", s.Write != nil},
		{"read", s.Read != nil},
		{"signal", s.Signal != nil},
		{"advance", s.Advance != ""},
		{"reset", s.Reset},
		{"expect_line", s.ExpectLine != nil},
		{"expect_irq", s.ExpectIRQ != nil},
		{"expect_state", s.ExpectState != nil},
		{"expect_guest_errors", s.ExpectGuestErrors != nil},
	}

	found := ""

	for _, k := range kinds {
		if !k.set {
			continue
		}

		if found != "" {
			return "", fmt.Errorf("%w: step has both %s and %s",
				ErrInvalidScenario, found, k.name)
		}

		found = k.name
	}

	if found == "" {
		return "", fmt.Errorf("%w: empty step", ErrInvalidScenario)
	}

	return found, nil
}

// Load decodes a scenario. Unknown keys are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	sc := &Scenario{}
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}

	return sc, nil
}

// LoadFile decodes the scenario stored at path.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

// Validate checks the device name and the shape of every step.
func (sc *Scenario) Validate() error {
	if err := deviceNameMustBeValid(sc.DeviceName()); err != nil {
		return err
	}

	for i, s := range sc.Steps {
		if _, err := s.Kind(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	return nil
}

func deviceNameMustBeValid(name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidScenario, r)
		}
	}()

	naming.NameMustBeValid(name)

	return nil
}

// Config returns the device configuration of the scenario. Values the
// scenario leaves out are taken from defaults.
func (sc *Scenario) Config(defaults alert.Config) (alert.Config, error) {
	config := defaults

	if sc.Alerts != nil {
		config.NumAlerts = *sc.Alerts
	}

	if sc.Classes != 0 {
		config.NumClasses = sc.Classes
	}

	if sc.PclkHz != 0 {
		config.Freq = timing.Freq(sc.PclkHz)
	}

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	return config, nil
}

// DeviceName returns the name the handler is built with.
func (sc *Scenario) DeviceName() string {
	if sc.Device == "" {
		return "AlertHandler"
	}

	return sc.Device
}
