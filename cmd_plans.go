package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/BatmanBruc/inkpay/internal/app"
	"github.com/BatmanBruc/inkpay/internal/config"
	"github.com/BatmanBruc/inkpay/internal/pricing"
	"github.com/spf13/cobra"
)

func plansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the membership catalog",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List membership plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			plans, err := a.Catalog.List(ctx, !all)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRICE\tDAYS\tACTIVE")
			for _, p := range plans {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", p.ID, p.Name, pricing.Money(p.Price), p.DurationDays, p.IsActive)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include disabled plans")

	seed := &cobra.Command{
		Use:   "seed [file]",
		Short: "Upsert plans from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.SeedPlans(ctx, args[0])
		},
	}

	cmd.AddCommand(list, seed)
	return cmd
}

func openApp(cmd *cobra.Command) (*app.App, context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.PlansFile = ""
	logger := newLogger(cfg.LogLevel, false)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return nil, nil, err
	}
	return a, ctx, nil
}
