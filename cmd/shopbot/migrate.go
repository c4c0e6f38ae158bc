package main

import (
	"github.com/spf13/cobra"

	"shopbot/internal/config"
	"shopbot/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Require(config.NeedDatabase); err != nil {
			return err
		}
		db, err := database.NewPostgres(cmd.Context(), cfg.Database, log.Named("database"))
		if err != nil {
			return err
		}
		defer db.Close()

		return db.RunMigrations()
	},
}
