package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gigflow/infrastructure"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the jobs and bids tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := infrastructure.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != infrastructure.StoreMySQL {
			return fmt.Errorf("migrate needs STORE_DRIVER=%s", infrastructure.StoreMySQL)
		}
		log, err := infrastructure.NewLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := infrastructure.NewMySQLConnection(cfg)
		if err != nil {
			return err
		}
		if err := infrastructure.Migrate(db); err != nil {
			return err
		}
		log.Infow("schema migrated")
		return nil
	},
}
