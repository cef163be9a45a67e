package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warmfront/warmfront/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		if err := database.Migrate(a.Config.DB.DSN); err != nil {
			return err
		}
		a.Logger.Info("Database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
