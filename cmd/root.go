// Package cmd defines the warmfront command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warmfront/warmfront/internal/app"
)

type appKey struct{}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "warmfront",
	Short: "Full-page cache warmer",
	Long: `warmfront keeps storefront full-page caches hot. It crawls page URLs
with configurable concurrency across crawl identities, drains a change-driven
work queue, and runs a full warming pass after cache flushes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cmd.Context(), configPath)
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if a := appFrom(cmd); a != nil {
			a.Close()
		}
	},
}

// appFrom pulls the wired application out of the command context.
func appFrom(cmd *cobra.Command) *app.App {
	a, _ := cmd.Context().Value(appKey{}).(*app.App)
	return a
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
