package timing

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Freq is a clock frequency in Hz.
type Freq uint64

// Units of frequency.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// NsPerSecond is the number of virtual-clock ticks in one second.
const NsPerSecond = 1_000_000_000

var (
	// ErrZeroFrequency is returned when a clock is configured at 0 Hz.
	ErrZeroFrequency = errors.New("timing: frequency cannot be 0")

	// ErrTickOverflow is returned when a cycle count does not fit the
	// virtual clock.
	ErrTickOverflow = errors.New("timing: duration overflows the clock")
)

// Validate returns ErrZeroFrequency for a zero frequency.
func (f Freq) Validate() error {
	if f == 0 {
		return ErrZeroFrequency
	}

	return nil
}

// Period returns the duration of one cycle, rounded down to whole
// nanoseconds.
func (f Freq) Period() VTimeInNs {
	f.mustBeValid()

	return VTimeInNs(NsPerSecond / uint64(f))
}

// CyclesToNs converts a number of cycles to a duration. The result is
// rounded down and saturates at the largest representable time.
func (f Freq) CyclesToNs(cycles uint64) VTimeInNs {
	ns, err := f.cyclesToNs(cycles)
	if err != nil {
		return VTimeInNs(math.MaxUint64)
	}

	return ns
}

func (f Freq) cyclesToNs(cycles uint64) (VTimeInNs, error) {
	f.mustBeValid()

	hi, lo := bits.Mul64(cycles, NsPerSecond)
	if hi >= uint64(f) {
		return 0, fmt.Errorf("%w: %d cycles at %d Hz", ErrTickOverflow, cycles, f)
	}

	quo, _ := bits.Div64(hi, lo, uint64(f))

	return VTimeInNs(quo), nil
}

// NsToCycles converts a duration to the number of whole cycles that fit in
// it.
func (f Freq) NsToCycles(d VTimeInNs) uint64 {
	f.mustBeValid()

	hi, lo := bits.Mul64(uint64(d), uint64(f))
	if hi >= NsPerSecond {
		return math.MaxUint64
	}

	quo, _ := bits.Div64(hi, lo, NsPerSecond)

	return quo
}

// NCyclesLater returns the time n cycles after now.
func (f Freq) NCyclesLater(n uint64, now VTimeInNs) VTimeInNs {
	d := f.CyclesToNs(n)
	if d > VTimeInNs(math.MaxUint64)-now {
		return VTimeInNs(math.MaxUint64)
	}

	return now + d
}

func (f Freq) mustBeValid() {
	if f == 0 {
		panic(ErrZeroFrequency)
	}
}
