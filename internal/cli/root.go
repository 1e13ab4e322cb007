// Package cli implements the oraculoctl operator commands.
package cli

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ecosoraculo/oraculo/internal/config"
	"github.com/ecosoraculo/oraculo/internal/logging"
)

// NewRootCmd creates the root cobra command for oraculoctl.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "oraculoctl",
		Short:   "Operator tool for the oracle paywall service",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := godotenv.Load(envFile); err != nil {
				slog.Debug("No .env file loaded", "path", envFile)
			}
			level, _ := cmd.Flags().GetString("log-level")
			_, err := logging.Setup(logging.Options{Level: level})
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(newServicesCmd())
	root.AddCommand(newOrderCmd())
	root.AddCommand(newSweepCmd())

	return root
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}
