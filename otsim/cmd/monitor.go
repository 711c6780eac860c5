package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/sarchlab/otsim/simulation"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor scenario.yaml",
	Short: "Run a scenario and serve the result to a browser.",
	Long: "`monitor scenario.yaml` runs a scenario with the monitoring " +
		"server on and keeps serving until interrupted.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			p, err := envInt("OTSIM_MONITOR_PORT", 0)
			if err != nil {
				return err
			}

			port = p
		}

		s := simulation.MakeBuilder().
			WithoutRecording().
			WithMonitorPort(port).
			Build()
		defer s.Terminate()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if open, _ := cmd.Flags().GetBool("open"); open {
			if err := browser.OpenURL(s.MonitorURL()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "cannot open browser: %v\n", err)
			}
		}

		err := runScenario(ctx, s, args[0], cmd.ErrOrStderr())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", args[0], err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "PASS %s\n", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"Serving %s, press Ctrl-C to quit\n", s.MonitorURL())
		<-ctx.Done()

		return err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Int("port", 0, "Port of the monitoring server")
	monitorCmd.Flags().Bool("open", false, "Open the monitor in a browser")
}
