package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/BatmanBruc/inkpay/internal/config"
	"github.com/BatmanBruc/inkpay/internal/middleware"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if userID <= 0 {
				return errors.New("--user is required")
			}
			tok, err := middleware.NewAuthenticator(cfg.JWTSecret).Issue(userID, types.ParseRole(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", string(types.RoleVisitor), "admin or visitor")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
