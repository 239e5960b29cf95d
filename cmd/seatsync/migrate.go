package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dhoini/seatsync/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(action func(*db.DBClient, string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errors.New("missing required configuration: DATABASE_DSN")
			}
			client, err := db.NewDBClient(cmd.Context(), cfg.Database.DSN, db.Options{}, log)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			return action(client, cfg.Database.MigrationsPath)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(c *db.DBClient, path string) error {
				return c.MigrateUp(path)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: run(func(c *db.DBClient, path string) error {
				return c.MigrateDown(path)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(func(c *db.DBClient, path string) error {
					version, dirty, err := c.MigrateVersion(path)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
					return nil
				})(cmd, args)
			},
		},
	)
	return cmd
}
