package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/Castellari-dev/cleaner/internal/infra/logger"
	"github.com/spf13/cobra"
)

var runNotify bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one cleanup now and print its result",
	Long: `Run a single manual cleanup outside the schedule. The RunResult is printed
as JSON on stdout; the exit code is non-zero when the run failed.`,
	RunE: runHandler,
}

func init() {
	runCmd.Flags().BoolVar(&runNotify, "notify", false, "send the result to the Telegram admin when configured")
}

func runHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		logger.Log.WithError(err).Error("Could not load application configuration")
		return err
	}
	a, err := buildApplication(cfg, runNotify)
	if err != nil {
		return err
	}

	res, err := a.scheduler.Trigger(context.Background())
	if err != nil {
		return err
	}
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	return runError(res)
}

// runError turns a failed result into the command's error.
func runError(res retention.RunResult) error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("cleanup run %s failed: %s", res.RunID, res.Error)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
