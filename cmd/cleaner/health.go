package main

import (
	"context"
	"errors"
	"os"

	"github.com/Castellari-dev/cleaner/internal/infra/logger"
	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report total and expired row counts of the purged table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(os.Stderr)
		if err != nil {
			logger.Log.WithError(err).Error("Could not load application configuration")
			return err
		}
		a, err := buildApplication(cfg, false)
		if err != nil {
			return err
		}

		snap := a.scheduler.Health(context.Background())
		if err := printJSON(cmd, snap); err != nil {
			return err
		}
		if !snap.Healthy {
			return errors.New(snap.Error)
		}
		return nil
	},
}
