package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchFlags struct {
	interval        time.Duration
	cleanupInterval time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scheduled jobs continuously",
	Long: `Loops until interrupted: every interval it drains one queue batch and
runs a full-page warming pass if the flush trigger is armed; expired queue
rows are swept on the cleanup interval.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()

		ticker := time.NewTicker(watchFlags.interval)
		defer ticker.Stop()
		cleanup := time.NewTicker(watchFlags.cleanupInterval)
		defer cleanup.Stop()

		a.Logger.Info("Watching for work",
			zap.Duration("interval", watchFlags.interval),
			zap.Duration("cleanup_interval", watchFlags.cleanupInterval),
		)
		for {
			select {
			case <-ctx.Done():
				a.Logger.Info("Shutting down watcher")
				return nil
			case <-ticker.C:
				if err := a.Jobs.ProcessQueue(ctx); err != nil {
					a.Logger.Error("Queue processing failed", zap.Error(err))
				}
				if err := a.Jobs.WarmFullPage(ctx); err != nil {
					a.Logger.Error("Full-page warming failed", zap.Error(err))
				}
			case <-cleanup.C:
				if err := a.Jobs.Cleanup(ctx); err != nil {
					a.Logger.Error("Queue cleanup failed", zap.Error(err))
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchFlags.interval, "interval", time.Minute, "how often to check for work")
	watchCmd.Flags().DurationVar(&watchFlags.cleanupInterval, "cleanup-interval", 24*time.Hour, "how often to sweep expired queue rows")
	rootCmd.AddCommand(watchCmd)
}
