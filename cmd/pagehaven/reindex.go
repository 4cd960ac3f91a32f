package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild object metadata from storage",
	Long: `Scan the blob storage and upsert a metadata entry for every blob.
Blob keys have the form <site-id>/<path>; other keys are skipped, as are
blobs of deleted sites and objects still waiting for cleanup.

This is useful when:
  - Recovering metadata after database loss
  - Moving blobs between storage backends by hand`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("scanning storage", "backend", a.cfg.Storage.Backend)

	indexed, err := a.objects.Populate(ctx, a.db.SiteRepo())
	if err != nil {
		return fmt.Errorf("reindex after %d objects: %w", indexed, err)
	}

	slog.Info("reindex complete", "objects_indexed", indexed)
	return nil
}
