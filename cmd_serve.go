package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BatmanBruc/inkpay/internal/app"
	"github.com/BatmanBruc/inkpay/internal/config"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var noMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel, true)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, cfg, logger, app.Options{Migrate: !noMigrate})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "do not apply schema migrations on startup")
	return cmd
}
