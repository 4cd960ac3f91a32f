package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/pagehaven/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "pagehaven",
	Short:   "Multi-tenant static site hosting worker",
	Long: `Pagehaven serves static sites from per-site subdomains, each with its
own access policy: public, password, private (members and invites) or
owner_only.

This binary runs the serving worker and the operator tooling around it:
schema setup, site management, bundle deploys and storage cleanup.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable; later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: PAGEHAVEN_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: pagehaven.db, env: PAGEHAVEN_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-path", "", "filesystem storage directory (default: ./data, env: PAGEHAVEN_STORAGE_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
