package cmd

import (
	"fmt"
	"os"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agency-billing",
	Short: "AgencyDesk billing backend",
	Long: `AgencyDesk billing backend manages the financial document lifecycle
of an agency: quotations with their approval flow, invoices, quotation to
invoice conversion and recurring invoice schedules.

Run "serve" to start the HTTP API or "sweep" to materialize due recurring
invoices once, e.g. from cron.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to configuration file")
}

// loadConfigAndLogger is the shared bootstrap of all subcommands.
func loadConfigAndLogger() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.InitializeLogger(logger.LoggerConfig{
		Level:       logger.ParseLevel(cfg.Logging.Level),
		Service:     "agency-billing",
		Environment: cfg.Server.Environment,
		OutputPath:  cfg.Logging.File,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}
