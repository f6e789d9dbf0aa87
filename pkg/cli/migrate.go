package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (golang-migrate)
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/config"
	"github.com/ekaya-inc/content-engine/pkg/database"
)

func newMigrateCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := o.load()
			if err != nil {
				return err
			}
			return migrateUp(cfg, logger)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := o.load()
			if err != nil {
				return err
			}
			return withSQLDB(cfg, func(db *sql.DB) error {
				return database.RollbackMigrations(db, steps, logger)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := o.load()
			if err != nil {
				return err
			}
			return withSQLDB(cfg, func(db *sql.DB) error {
				v, dirty, err := database.MigrationVersion(db, logger)
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", v)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", v)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func migrateUp(cfg *config.Config, logger *zap.Logger) error {
	return withSQLDB(cfg, func(db *sql.DB) error {
		return database.RunMigrations(db, logger)
	})
}

// withSQLDB opens a database/sql handle for golang-migrate.
func withSQLDB(cfg *config.Config, fn func(db *sql.DB) error) error {
	db, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer db.Close()
	return fn(db)
}
