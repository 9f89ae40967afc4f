package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ticketguard/scoring/internal/infrastructure/config"
	"github.com/ticketguard/scoring/pkg/postgres"
)

func newMigrateCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|version",
		Short:     "apply, revert or inspect the Postgres profile store schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires DB_DRIVER=%s, got %q", config.DriverPostgres, cfg.Database.Driver)
			}
			dsn := cfg.Database.Postgres().DSN()
			dir := cfg.Database.MigrationsDir
			out := cmd.OutOrStdout()

			switch args[0] {
			case "up":
				if err := postgres.RunMigrations(dsn, dir); err != nil {
					return err
				}
				fmt.Fprintln(out, "Migrations applied.")
			case "down":
				if err := postgres.RunMigrationsDown(dsn, dir); err != nil {
					return err
				}
				fmt.Fprintln(out, "Migrations reverted.")
			}

			version, dirty, err := postgres.MigrationVersion(dsn, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Schema version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
}
