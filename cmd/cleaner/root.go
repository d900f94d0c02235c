package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cleaner",
	Short: "Retention cleaner - purges expired rows in small batches",
	Long: `cleaner deletes rows older than a retention window from one table,
in bounded batches with retries, on a cron schedule or on demand.

Configuration comes from environment variables, an optional .env file and
an optional YAML file given with --config.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags are applied through the environment so config.Load stays the single source.
		if configFile != "" {
			_ = os.Setenv("CONFIG_FILE", configFile)
		}
		if logLevel != "" {
			_ = os.Setenv("LOG_LEVEL", logLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthCmd)
}
