package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dhoini/seatsync/internal/app"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one slot reconciliation sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Reconcile.Timeout)
			defer cancel()

			core, err := app.NewCore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = core.Close() }()

			report, err := core.Sweeper.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscriptions=%d synced=%d torn_down=%d deactivated=%d superseded=%d failed=%d\n",
				report.Subscriptions, report.Synced, report.TornDown, report.Deactivated, report.Superseded, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d subscriptions failed to reconcile", report.Failed)
			}
			return nil
		},
	}
}
