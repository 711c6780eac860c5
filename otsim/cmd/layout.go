package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sarchlab/otsim/periph/alert"
	"github.com/sarchlab/otsim/sim/timing"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the register map of the alert handler.",
	Long: "`layout --alerts N --classes M` prints the byte offset and the " +
		"name of every register.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := defaultConfig()
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("alerts") {
			config.NumAlerts, _ = cmd.Flags().GetInt("alerts")
		}

		if cmd.Flags().Changed("classes") {
			config.NumClasses, _ = cmd.Flags().GetInt("classes")
		}

		if err := config.Validate(); err != nil {
			return err
		}

		h := alert.MakeBuilder().
			WithEngine(timing.NewSerialEngine()).
			WithConfig(config).
			Build("AlertHandler")

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, r := range h.RegisterDump() {
			fmt.Fprintf(w, "0x%03x\t%s\t0x%08x\n", r.Offset, r.Name, r.Value)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().Int("alerts", 0, "Number of external alerts")
	layoutCmd.Flags().Int("classes", 0, "Number of escalation classes")
}
