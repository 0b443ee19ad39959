// Package cli wires the application together and exposes the ladas command.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/YoshitsuguKoike/ladas/internal/app/config"
	infraconfig "github.com/YoshitsuguKoike/ladas/internal/infrastructure/config"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig *appconfig.AppConfig

// NewRoot builds the root command
func NewRoot() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "ladas",
		Short: "Screen automation agent",
		Long:  "ladas executes natural-language desktop tasks through a capture, perceive, decide, act, validate loop.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			InitGlobalLogger(logLevel)

			baseDir := ".ladas"
			if home := os.Getenv("LADAS_HOME"); home != "" {
				baseDir = home
			}
			cfg, err := infraconfig.LoadSettings(baseDir)
			if err != nil {
				return err
			}
			globalConfig = cfg
			GetLogger().Debug("configuration loaded from %s", cfg.Source)
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newTasksCmd())
	return cmd
}
