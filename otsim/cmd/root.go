// Package cmd provides the command-line interface for otsim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sarchlab/otsim/periph/alert"
	"github.com/sarchlab/otsim/sim/timing"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "otsim",
	Short: "otsim simulates the alert handler of a secure microcontroller.",
	Long: `otsim simulates the alert handler of a secure microcontroller ` +
		`on a discrete event engine. It can print the register map, run ` +
		`scenario files, and serve a running scenario to a browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return loadDotEnv(".env")
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadDotEnv adds the variables of an .env file to the environment. A
// missing file is not an error. Variables already set are kept.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// defaultConfig returns the device configuration given by OTSIM_ALERTS,
// OTSIM_CLASSES and OTSIM_PCLK_HZ, falling back to the built-in defaults.
func defaultConfig() (alert.Config, error) {
	config := alert.DefaultConfig()

	alerts, err := envInt("OTSIM_ALERTS", config.NumAlerts)
	if err != nil {
		return config, err
	}

	classes, err := envInt("OTSIM_CLASSES", config.NumClasses)
	if err != nil {
		return config, err
	}

	pclk, err := envInt("OTSIM_PCLK_HZ", int(config.Freq))
	if err != nil {
		return config, err
	}

	config.NumAlerts = alerts
	config.NumClasses = classes
	config.Freq = timing.Freq(pclk)

	return config, config.Validate()
}

func envInt(name string, fallback int) (int, error) {
	value, found := os.LookupEnv(name)
	if !found || value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	return n, nil
}
