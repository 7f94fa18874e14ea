package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
)

var rootCmd = &cobra.Command{
	Use:           "seoctl",
	Short:         "Operate the GetMoreSeo scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	cfgPath string
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config/scheduler.yaml", "scheduler config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warn")
}

// loadConfig reads the scheduler config and builds a logger for it.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	lc := cfg.Log.AsLoggerConfig(cfg.App)
	if !verbose {
		lc.Level = "warn"
	}
	l, err := obs.NewLogger(lc)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}
