// Package main runs the project board API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projectboard/internal/config"
	"projectboard/internal/logging"
)

var (
	// configPath points at an optional YAML file; PM_* env vars still apply.
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "projectboard",
	Short: "Project board API server",
	Long: `projectboard serves the task board REST API, the realtime event
stream and the web shell.

Examples:
  # Start with defaults (sqlite in ./projectboard.db, port 8008)
  projectboard serve

  # Use a config file
  projectboard serve --config config.yaml

  # Override a single setting from the environment
  PM_DATABASE__DRIVER=postgres PM_DATABASE__DSN="host=db user=pm" projectboard serve`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// setup loads the config and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
