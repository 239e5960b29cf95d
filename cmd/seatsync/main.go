package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dhoini/seatsync/internal/config"
	"github.com/Dhoini/seatsync/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "seatsync",
		Short:        "Seat billing service for multi-tenant organizations",
		Long:         "seatsync keeps organization seats in step with Stripe license subscriptions: it processes Stripe webhooks, serves billing views and reconciles seat ledgers.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config", "", "directory holding config.yml and .env")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newReconcileCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(o.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, logger.New(logger.ParseLevel(cfg.App.LogLevel)), nil
}
