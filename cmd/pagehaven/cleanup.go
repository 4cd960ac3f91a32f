package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/pagehaven"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up soft-deleted files",
	Long: `Permanently remove soft-deleted files from storage.

This command processes all objects that have been soft-deleted (by a
deploy with --prune or a site deletion) but not yet physically removed
from storage. It:
  1. Deletes the blob from storage
  2. Marks the metadata entry as cleaned up

Run this periodically to reclaim storage space from deleted files.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var cleanupLimit int

func init() {
	cleanupCmd.Flags().IntVar(&cleanupLimit, "limit", 100, "maximum number of files to clean up per batch")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("starting cleanup", "limit", cleanupLimit)

	cleaned, err := a.objects.Tombstone(ctx, pagehaven.ListQuery{Limit: cleanupLimit})
	if err != nil {
		return fmt.Errorf("tombstone after %d files: %w", cleaned, err)
	}

	slog.Info("cleanup complete", "files_cleaned", cleaned)
	return nil
}
