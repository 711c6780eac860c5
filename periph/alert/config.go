package alert

import (
	"fmt"

	"github.com/sarchlab/otsim/sim/timing"
)

// NumLocalAlerts is the number of fault sources internal to the handler.
const NumLocalAlerts = 7

// Local alert sources.
const (
	LocalAlertPingFail = iota
	LocalAlertEscPingFail
	LocalAlertIntegFail
	LocalAlertEscIntegFail
	LocalAlertBusIntegFail
	LocalAlertShadowRegUpdateError
	LocalAlertShadowRegStorageError
)

var localAlertNames = [NumLocalAlerts]string{
	"ALERT_PINGFAIL",
	"ESC_PINGFAIL",
	"ALERT_INTEGFAIL",
	"ESC_INTEGFAIL",
	"BUS_INTEGFAIL",
	"SHADOW_REG_UPDATE_ERROR",
	"SHADOW_REG_STORAGE_ERROR",
}

// LocalAlertName returns the name of a local alert source.
func LocalAlertName(i int) string {
	if i < 0 || i >= NumLocalAlerts {
		return "?"
	}

	return localAlertNames[i]
}

// NumEscalationLines is the number of escalation severities, and of the
// escalation outputs the classes share.
const NumEscalationLines = 4

// MaxClasses is the largest supported number of classes.
const MaxClasses = 32

// Config holds the construction-time parameters of an alert handler.
type Config struct {
	NumAlerts  int
	NumClasses int
	Freq       timing.Freq
}

// DefaultConfig returns the configuration of the reference design.
func DefaultConfig() Config {
	return Config{
		NumAlerts:  65,
		NumClasses: 4,
		Freq:       24 * timing.MHz,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.NumAlerts < 0 {
		return fmt.Errorf("alert count must be >= 0, got %d", c.NumAlerts)
	}

	if c.NumClasses < 1 || c.NumClasses > MaxClasses {
		return fmt.Errorf("class count must be in 1..%d, got %d",
			MaxClasses, c.NumClasses)
	}

	if err := c.Freq.Validate(); err != nil {
		return fmt.Errorf("peripheral clock: %w", err)
	}

	return nil
}
