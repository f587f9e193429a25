package main

import (
	"movie-shop/config"
	"movie-shop/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Read()
			if err := setup(cfg); err != nil {
				return err
			}
			defer util.SyncLogger()

			// opening the store runs the migrations
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			util.GetLogger().Info("Migrations applied", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}
