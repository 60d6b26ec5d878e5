package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent task completions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.pk.Dashboard().History(limit, offset)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No task history yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tCATEGORY\tEST\tACTUAL\tRATIO\tENERGY\tPEAK")
			for _, rec := range records {
				peak := ""
				if rec.InPeakWindow {
					peak = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%dm\t%dm\t%.2f\t%d\t%s\n",
					rec.Timestamp.Local().Format("Jan 02 15:04"),
					rec.Category, rec.EstimatedMinutes, rec.ActualMinutes,
					rec.Ratio(), rec.EnergyLevel, peak)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}
