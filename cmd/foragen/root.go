package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foragen/foragen-cli/internal/config"
	"github.com/foragen/foragen-cli/internal/logging"
)

var (
	logLevel string

	// appConfig is loaded before every command runs.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "foragen",
	Short: "Multi-agent workflow orchestrator",
	Long: `Foragen runs declarative multi-agent workflows.

A workflow is a graph of steps. Each step hands a task to a named agent,
can extract variables from the agent's answer for later steps, and runs
sequentially, level by level in parallel, or gated by conditions.

Workflows are resolved from three levels, highest precedence first:
  project   .foragen/workflows/*.json
  user      ~/.config/foragen/workflows/*.json
  builtin   shipped with foragen`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := logging.Init(cfg.Logging.Level, cmd.ErrOrStderr()); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
