package main

import (
	"github.com/banquethub/service-reservation/internal/repository/migrations"
	"github.com/banquethub/service-reservation/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return database.RunMigrations(postgresConfig(cfg).DatabaseURL(), migrations.FS, ".", log)
		},
	}
}
