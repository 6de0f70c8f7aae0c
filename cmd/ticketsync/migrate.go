package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-sync/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the run ledger schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		logger := getLogger(cmd)
		if cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required to migrate")
		}

		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
		files, _ := persistence.MigrationFiles(cfg.Postgres.MigrationsDir)
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(files))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
