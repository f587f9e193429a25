package main

import (
	"fmt"
	"os"

	"movie-shop/config"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "moviebot",
		Short:        "MovieBot - Telegram movie shop with M-Pesa payments",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup initializes logging for a command
func setup(cfg *config.Config) error {
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openStore connects to the configured database and applies migrations
func openStore(cfg *config.Config) (*store.Store, error) {
	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
