package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"earnbot/internal/pkg/db"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := db.Migrate(cfg.Database.MigrateURL()); err != nil {
			return errors.Wrap(err, "migrate")
		}
		return nil
	},
}
