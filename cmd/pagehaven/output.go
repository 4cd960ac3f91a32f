package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"

	"github.com/sagarc03/pagehaven"
)

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func writeSiteTable(w io.Writer, sites []pagehaven.Site) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SUBDOMAIN\tACCESS\tOWNER\tMEMBERS\tCREATED")
	for _, s := range sites {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.Subdomain, s.AccessType, s.OwnerID, len(s.Members), s.CreatedAt.Format(time.DateTime))
	}
	return tw.Flush()
}

func writeSiteDetail(w io.Writer, s pagehaven.Site) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	_, _ = fmt.Fprintf(tw, "Subdomain:\t%s\n", s.Subdomain)
	_, _ = fmt.Fprintf(tw, "Access:\t%s\n", s.AccessType)
	_, _ = fmt.Fprintf(tw, "Owner:\t%s\n", s.OwnerID)
	_, _ = fmt.Fprintf(tw, "Members:\t%s\n", orNone(strings.Join(s.Members, ", ")))

	invites := make([]string, 0, len(s.Invites))
	for _, inv := range s.Invites {
		switch {
		case inv.UserID != "" && inv.Email != "":
			invites = append(invites, inv.UserID+" <"+inv.Email+">")
		case inv.UserID != "":
			invites = append(invites, inv.UserID)
		default:
			invites = append(invites, "<"+inv.Email+">")
		}
	}
	_, _ = fmt.Fprintf(tw, "Invites:\t%s\n", orNone(strings.Join(invites, ", ")))
	_, _ = fmt.Fprintf(tw, "Created:\t%s\n", s.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(tw, "Updated:\t%s\n", s.UpdatedAt.Format(time.RFC3339))
	return tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
