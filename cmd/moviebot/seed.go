package main

import (
	"fmt"

	"movie-shop/config"
	"movie-shop/internal/catalog"
	"movie-shop/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert catalog items from a YAML file",
		Long: `Upsert catalog items from a YAML file.

Items are written in file order, which is the order /movies shows them.
Existing items with the same id are updated in place.

Examples:
  moviebot seed --file catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Read()
			if err := setup(cfg); err != nil {
				return err
			}
			defer util.SyncLogger()

			if file == "" {
				file = cfg.Business.CatalogFile
			}
			if file == "" {
				return fmt.Errorf("no catalog file: pass --file or set CATALOG_FILE")
			}

			items, err := catalog.LoadFile(file)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := catalog.Seed(cmd.Context(), db, items)
			if err != nil {
				return err
			}
			util.GetLogger().Info("Catalog seeded", zap.String("file", file), zap.Int("items", n))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	return cmd
}
