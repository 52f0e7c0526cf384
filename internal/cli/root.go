// Package cli wires the operational commands around the data layer:
// schema migration, backup export/import and analysis settings. All real
// logic lives in the internal packages; commands only assemble them.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mockmaster/internal/config"
	"mockmaster/internal/logger"
	"mockmaster/internal/repository"
)

var dbPath string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mockmaster",
		Short: "Local-first study store: photograph exam questions, review and quiz yourself",
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the sqlite database (overrides config)")
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewSettingsCmd())
	return cmd
}

// bootstrap loads config, initializes logging and opens the store.
func bootstrap() (*config.Config, *repository.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		return nil, nil, err
	}

	store, err := repository.Open(cfg.DB.Path, logger.Get())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func closeStore(store *repository.Store) {
	if err := store.Close(); err != nil {
		logger.Get().Warn("Failed to close record store", zap.Error(err))
	}
}
