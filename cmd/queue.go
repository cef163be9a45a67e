package cmd

import "github.com/spf13/cobra"

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Operate on the warming work queue",
}

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain one batch of pending queue items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return appFrom(cmd).Jobs.ProcessQueue(cmd.Context())
	},
}

var queueCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete queue items past the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return appFrom(cmd).Jobs.Cleanup(cmd.Context())
	},
}

func init() {
	queueCmd.AddCommand(queueProcessCmd)
	queueCmd.AddCommand(queueCleanCmd)
	rootCmd.AddCommand(queueCmd)
}
