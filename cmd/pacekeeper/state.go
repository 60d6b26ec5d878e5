package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacekeeper/pacekeeper/multiplier"
)

func newEnergyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "energy <1-10>",
		Short: "Record your current energy level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("energy must be a number 1-10: %w", err)
			}

			a, err := wireApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.pk.SetEnergy(level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Energy set. Current multiplier: %.2fx\n", a.pk.Multiplier().Dynamic())
			return nil
		},
	}
}

func newMedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "med",
		Short: "Log a medication dose taken now, anchoring the peak focus window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			now := time.Now()
			if err := a.pk.LogMedication(now); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dose logged at %s. Peak window: %s to %s\n",
				now.Format("15:04"),
				now.Add(multiplier.PeakWindowStart).Format("15:04"),
				now.Add(multiplier.PeakWindowEnd).Format("15:04"))
			return nil
		},
	}
}

func newCalibrateCmd(flags *rootFlags) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "calibrate <minutes>",
		Short: "Convert a raw time estimate into a calibrated one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("minutes must be a number: %w", err)
			}

			a, err := wireApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			cal := a.pk.Calibrate(minutes, category)
			fmt.Fprintf(cmd.OutOrStdout(), "%d min -> %d min (x%.2f, %s)\n",
				cal.OriginalMinutes, cal.CalibratedMinutes, cal.Multiplier, cal.Source)
			for _, factor := range cal.Factors {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", factor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "task category for learned calibration")
	return cmd
}
