package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/pagehaven/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long: `Create the site, member, invite and object tables if they do not exist
and validate the resulting schema. Safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		slog.Info("schema is up to date", "type", cfg.Database.Type)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
