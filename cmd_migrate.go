package main

import (
	"context"
	"fmt"

	"github.com/BatmanBruc/inkpay/internal/config"
	"github.com/BatmanBruc/inkpay/store"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel, false)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN, true)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			pg.Close()
			logger.Info("migrations applied")
			return nil
		},
	}
}
