package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/bundle"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <subdomain> <dir>",
	Short: "Upload a bundle directory to a site",
	Long: `Upload every file of a local bundle directory to a site.

Dotfiles are skipped. An optional pagehaven.yaml at the bundle root sets
Cache-Control and Content-Type headers by path pattern:

  headers:
    - match: "assets/*"
      cache_control: "public, max-age=31536000, immutable"
    - match: "*.html"
      cache_control: "no-cache"

With --prune, objects of the site that are not part of the bundle are
soft-deleted; run 'pagehaven cleanup' to reclaim their storage.

Examples:
  pagehaven deploy blog ./public
  pagehaven deploy --prune docs ./site`,
	Args: cobra.ExactArgs(2),
	RunE: runDeploy,
}

var (
	deployPrune  bool
	deployDryRun bool
	deployQuiet  bool
)

func init() {
	deployCmd.Flags().BoolVar(&deployPrune, "prune", false, "soft-delete objects that are not in the bundle")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "print what would change without uploading")
	deployCmd.Flags().BoolVarP(&deployQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	subdomain, dir := args[0], args[1]

	files, err := bundle.Collect(dir)
	if err != nil {
		return err
	}

	if err := bundle.CheckPaths(files); err != nil {
		return err
	}

	manifest, err := bundle.LoadManifest(dir)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	site, err := a.sites.GetSite(ctx, subdomain)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var uploaded int64

	for _, f := range files {
		obj := manifest.Object(f)

		if deployDryRun {
			_, _ = fmt.Fprintf(out, "would upload: %s (%s)\n", f.Path, formatSize(f.Size))
			continue
		}

		m, err := uploadFile(ctx, a.objects, site.ID, obj, f.FullPath)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", f.Path, err)
		}
		uploaded += m.FileSizeBytes

		if !deployQuiet {
			_, _ = fmt.Fprintf(out, "uploaded: %s (%s)\n", m.Path, formatSize(m.FileSizeBytes))
		}
	}

	pruned := 0
	if deployPrune {
		pruned, err = prune(ctx, a.objects, site.ID, files, out)
		if err != nil {
			return err
		}
	}

	slog.Info("deploy complete",
		"site", site.Subdomain,
		"files", len(files),
		"bytes", uploaded,
		"pruned", pruned,
		"dry_run", deployDryRun,
	)
	return nil
}

func uploadFile(ctx context.Context, objects *pagehaven.ObjectService, siteID uuid.UUID, obj pagehaven.PutObject, fullPath string) (pagehaven.MetaData, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return pagehaven.MetaData{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	return objects.Put(ctx, siteID, obj, f)
}

// prune soft-deletes the live objects of a site that the bundle no longer
// contains.
func prune(ctx context.Context, objects *pagehaven.ObjectService, siteID uuid.UUID, files []bundle.File, out io.Writer) (int, error) {
	keep := make(map[string]struct{}, len(files))
	for _, f := range files {
		keep[f.Path] = struct{}{}
	}

	existing, err := objects.ListAll(ctx, siteID)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}

	pruned := 0
	for _, m := range existing {
		if _, ok := keep[m.Path]; ok {
			continue
		}

		if deployDryRun {
			_, _ = fmt.Fprintf(out, "would delete: %s\n", m.Path)
			continue
		}

		if err := objects.Delete(ctx, siteID, m.Path); err != nil {
			return pruned, fmt.Errorf("prune %s: %w", m.Path, err)
		}
		pruned++

		if !deployQuiet {
			_, _ = fmt.Fprintf(out, "deleted: %s\n", m.Path)
		}
	}

	return pruned, nil
}
