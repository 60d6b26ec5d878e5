package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show current energy, multiplier and today's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.pk.Dashboard().Stats()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Energy level:     %d/10\n", stats.EnergyLevel)
			fmt.Fprintf(out, "Time multiplier:  %.2fx\n", stats.Multiplier)
			fmt.Fprintf(out, "Completed today:  %d\n", stats.TasksCompletedToday)
			if stats.CurrentTask != "" {
				fmt.Fprintf(out, "Current task:     %s\n", stats.CurrentTask)
			}
			switch {
			case stats.PeakWindow.Active:
				fmt.Fprintf(out, "Peak window:      active, %d min remaining\n", stats.PeakWindow.MinutesRemaining)
			case stats.PeakWindow.Reason == "not_yet":
				fmt.Fprintf(out, "Peak window:      starts in %d min\n", stats.PeakWindow.MinutesUntil)
			default:
				fmt.Fprintf(out, "Peak window:      inactive (%s)\n", stats.PeakWindow.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
