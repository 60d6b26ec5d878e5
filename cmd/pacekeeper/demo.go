package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacekeeper/pacekeeper"
	"github.com/pacekeeper/pacekeeper/config"
	"github.com/pacekeeper/pacekeeper/core"
)

// newDemoCmd runs a complete focus block at a compressed tick scale so a
// 25-minute session plays out in a couple of seconds.
func newDemoCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a compressed focus session end to end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			if flags.dbPath != "" {
				cfg.DBPath = flags.dbPath
			}

			pk, err := pacekeeper.New(func(o *pacekeeper.Options) {
				o.DBPath = cfg.DBPath
				o.TickScale = 50 * time.Millisecond
			})
			if err != nil {
				return err
			}
			defer pk.Close()

			out := cmd.OutOrStdout()
			for _, kind := range []core.EventKind{core.FocusBlockStarted, core.CheckinDue, core.FocusBlockEnded} {
				pk.Bus().Subscribe(kind, func(evt core.BusEvent) error {
					if msg, ok := evt.Payload["message"].(string); ok {
						fmt.Fprintf(out, "[%s] %s\n", evt.Kind, msg)
					} else {
						fmt.Fprintf(out, "[%s] %v\n", evt.Kind, evt.Payload)
					}
					return nil
				})
			}

			cal := pk.Calibrate(25, "demo")
			fmt.Fprintf(out, "Raw estimate 25 min -> calibrated %d min (x%.2f)\n", cal.CalibratedMinutes, cal.Multiplier)

			if _, err := pk.StartFocus("demo task", 25, 5); err != nil {
				return err
			}
			<-pk.Accountability().Done()

			fmt.Fprintln(out, "Demo complete.")
			return nil
		},
	}
}
