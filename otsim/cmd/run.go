package cmd

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/otsim/scenario"
	"github.com/sarchlab/otsim/simulation"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run scenario.yaml",
	Short: "Run a scenario and check its expectations.",
	Long: "`run scenario.yaml` plays the steps of a scenario on a fresh " +
		"alert handler. With --db the trace is recorded to an SQLite file " +
		"or a clickhouse:// DSN; with --trace it is printed.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		trace, _ := cmd.Flags().GetBool("trace")
		events, _ := cmd.Flags().GetBool("events")

		builder := simulation.MakeBuilder().WithoutMonitoring()
		if db == "" {
			builder = builder.WithoutRecording()
		} else {
			builder = builder.WithOutputFileName(db)
		}

		if trace {
			builder = builder.WithTraceLog(cmd.OutOrStdout())
		}

		if events {
			builder = builder.WithEventLog(cmd.ErrOrStderr())
		}

		s := builder.Build()

		runErr := runScenario(cmd.Context(), s, args[0], cmd.ErrOrStderr())

		if err := s.Terminate(); err != nil && runErr == nil {
			runErr = err
		}

		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(cmd.OutOrStdout(), "PASS %s\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("db", "",
		"Record the trace to this SQLite file (without suffix) or DSN")
	runCmd.Flags().Bool("trace", false, "Print every trace record")
	runCmd.Flags().Bool("events", false, "Print every engine event")
}

func runScenario(
	ctx context.Context,
	s *simulation.Simulation,
	path string,
	logOut io.Writer,
) error {
	sc, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	defaults, err := defaultConfig()
	if err != nil {
		return err
	}

	r, err := scenario.NewRunner(s, sc, defaults, log.New(logOut, "", 0))
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	return r.Run(ctx)
}
