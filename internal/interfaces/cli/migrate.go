package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/referta/referta/internal/infrastructure/database/postgres"
)

// newMigrateCmd creates the "migrate" subcommand group for managing the
// database schema.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		newMigrateUpCmd(),
		newMigrateDownCmd(),
		newMigrateStatusCmd(),
	)

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			dbURL := postgres.URL(cliCtx.Config.Database)
			path := migrationsPath(cliCtx)
			if err := postgres.RunMigrations(dbURL, path); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "OK: schema is up to date")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			dbURL := postgres.URL(cliCtx.Config.Database)
			path := migrationsPath(cliCtx)
			if err := postgres.RollbackMigrations(dbURL, path, steps); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			dbURL := postgres.URL(cliCtx.Config.Database)
			path := migrationsPath(cliCtx)
			version, dirty, err := postgres.MigrationStatus(dbURL, path)
			if err != nil {
				return err
			}

			if version == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema version: none (no migrations applied)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

// migrationsPath resolves the file:// source URL for the configured
// migrations directory.
func migrationsPath(cliCtx *CLIContext) string {
	p := cliCtx.Config.Database.MigrationPath
	if p == "" {
		p = "migrations"
	}
	return "file://" + p
}
