package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xtaosu/meme-memos/internal/db"
	"github.com/0xtaosu/meme-memos/internal/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the memo tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			dbConn, err := db.Open(cfg.DB)
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer db.Close(dbConn)
			if err := db.AutoMigrate(dbConn); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			log.Info("migration complete", zap.String("driver", dbConn.Driver))
			return nil
		},
	}
}
