package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pacekeeper/pacekeeper"
	"github.com/pacekeeper/pacekeeper/config"
	"github.com/pacekeeper/pacekeeper/logging"
)

// app bundles everything a command needs once the engine is wired.
type app struct {
	pk  *pacekeeper.Pacekeeper
	cfg *config.Config
}

type rootFlags struct {
	configFile string
	dbPath     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "pacekeeper",
		Short:         "Externalized working memory for time-blind task planning",
		Long:          "pacekeeper tracks energy, calibrates time estimates against your real task history, and runs accountability check-ins and hard-stop guardrails for focus blocks.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default pacekeeper.yaml in . or ~/.pacekeeper)")
	pf.StringVar(&flags.dbPath, "db", "", "database file (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(
		newStatsCmd(flags),
		newHistoryCmd(flags),
		newSessionsCmd(flags),
		newEnergyCmd(flags),
		newMedCmd(flags),
		newCalibrateCmd(flags),
		newDemoCmd(flags),
	)

	return rootCmd
}

// wireApp resolves configuration and opens the engine. Callers own the
// returned app and must call close.
func wireApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	logCfg := logging.DefaultLoggerConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.Output = os.Stderr
	logger := logging.NewLogger(logCfg)

	pk, err := pacekeeper.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{pk: pk, cfg: cfg}, nil
}

func (a *app) close() {
	if err := a.pk.Close(); err != nil {
		// Nothing actionable at exit; the store flushes on close anyway.
		_ = err
	}
}
