package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/emergency-console/repositories/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Long: `Apply every pending goose migration to the database described by
DATABASE_URL or the DB_* variables, then print the schema version.

Examples:
  consolectl migrate
  consolectl migrate --status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := root.logger()
			defer func() { _ = logger.Sync() }()

			db, err := postgres.NewDB(cfg.Database, logger)
			if err != nil {
				return err
			}
			factory := postgres.NewRepositoryFactoryFromDB(db, logger)
			defer factory.Close()

			return runMigrate(cmd, factory, statusOnly)
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the current version without migrating")
	return cmd
}

func runMigrate(cmd *cobra.Command, factory *postgres.RepositoryFactory, statusOnly bool) error {
	if !statusOnly {
		if err := factory.Migrate(cmd.Context()); err != nil {
			return err
		}
	}

	version, err := factory.GetDB().MigrationVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
