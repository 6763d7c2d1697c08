package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"edgeproof/adapters/postgres"
	"edgeproof/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending result-store migrations to $DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			if !appCfg.Database.Enabled() {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			db, err := postgres.Connect(cmd.Context(), appCfg.Database.URL, 1, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.NewMigrator(db).Up(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied migration: %s\n", v)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "result store is up to date")
			}
			return nil
		},
	}
}
