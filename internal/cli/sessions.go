package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/site-archiver/internal/cache"
)

var (
	sessionStatus    string
	cleanOlderThan   string
	cleanKeep        int
	cleanDryRun      bool
	deleteForce      bool
	showSessionPages bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain cached crawl sessions.",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached sessions.",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's metadata.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a cached session.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old sessions, keeping the most recent completed ones.",
	Args:  cobra.NoArgs,
	RunE:  runSessionsClean,
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize cache usage.",
	Args:  cobra.NoArgs,
	RunE:  runSessionsStats,
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionStatus, "status", "", "only list sessions with this status")
	sessionsShowCmd.Flags().BoolVar(&showSessionPages, "pages", false, "list the archived page URLs as well")
	sessionsDeleteCmd.Flags().BoolVar(&deleteForce, "force", false, "delete even when the session is still active")
	sessionsCleanCmd.Flags().StringVar(&cleanOlderThan, "older-than", "30d", "remove sessions older than this (e.g. 30d)")
	sessionsCleanCmd.Flags().IntVar(&cleanKeep, "keep-completed", 10, "always keep this many most recent completed sessions")
	sessionsCleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "report what would be removed without removing it")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsCleanCmd)
	sessionsCmd.AddCommand(sessionsStatsCmd)
}

// maintenanceStore opens the session cache for commands that run
// without a seed URL. Compression settings only matter for writes, so
// the defaults are fine here.
func maintenanceStore() *cache.Store {
	store := cache.NewStore(resolveCacheDir(), newSink(), false, 6)
	return &store
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	sessions, err := maintenanceStore().ListSessions()
	if err != nil {
		return err
	}

	shown := 0
	for _, meta := range sessions {
		if sessionStatus != "" && !strings.EqualFold(string(meta.Status), sessionStatus) {
			continue
		}
		cmd.Printf("%s  %-9s  %5d pages  %8s  %s\n",
			meta.SessionID, meta.Status, meta.PagesScraped,
			formatBytes(meta.CacheSize), meta.BaseURL)
		shown++
	}
	if shown == 0 {
		cmd.Println("No sessions found.")
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store := maintenanceStore()
	meta, records, report, err := store.LoadSession(args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Session:       %s\n", meta.SessionID)
	cmd.Printf("Base URL:      %s\n", meta.BaseURL)
	cmd.Printf("Status:        %s\n", meta.Status)
	if meta.FailureReason != "" {
		cmd.Printf("Failed:        %s\n", meta.FailureReason)
	}
	cmd.Printf("Pages:         %d\n", meta.PagesScraped)
	cmd.Printf("Created:       %s\n", meta.CreatedAt.Format(time.RFC3339))
	cmd.Printf("Last modified: %s\n", meta.LastModified.Format(time.RFC3339))
	cmd.Printf("Config hash:   %s\n", meta.ConfigHash)
	cmd.Printf("Cache size:    %s\n", formatBytes(meta.CacheSize))
	if len(meta.ExcludePatterns) > 0 {
		cmd.Printf("Excludes:      %s\n", strings.Join(meta.ExcludePatterns, ", "))
	}
	if report.Partial {
		cmd.Printf("Warning:       %d page files unreadable\n", report.CorruptPages)
	}
	if showSessionPages {
		for _, rec := range records {
			cmd.Printf("  %s\n", rec.URL)
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store := maintenanceStore()

	meta, _, _, err := store.LoadSession(args[0])
	if err != nil {
		return err
	}
	if meta.Status == cache.StatusActive && !deleteForce {
		return fmt.Errorf("session %s is still active, use --force to delete it", args[0])
	}

	if err := store.DeleteSession(args[0]); err != nil {
		return err
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runSessionsClean(cmd *cobra.Command, args []string) error {
	maxAgeDays, err := parseDays(cleanOlderThan)
	if err != nil {
		return err
	}
	store := maintenanceStore()

	if cleanDryRun {
		// Same selection rule as the cleanup itself, without deleting.
		sessions, listErr := store.ListSessions()
		if listErr != nil {
			return listErr
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
		keptCompleted := 0
		candidates := 0
		for _, meta := range sessions {
			if meta.Status == cache.StatusCompleted && keptCompleted < cleanKeep {
				keptCompleted++
				continue
			}
			if meta.Status == cache.StatusActive {
				continue
			}
			if !meta.LastModified.Before(cutoff) {
				continue
			}
			cmd.Printf("Would remove %s (%s, %s)\n", meta.SessionID, meta.Status, formatBytes(meta.CacheSize))
			candidates++
		}
		cmd.Printf("%d sessions would be removed\n", candidates)
		return nil
	}

	result, cleanErr := store.CleanupOldSessions(maxAgeDays, cleanKeep)
	if cleanErr != nil {
		return cleanErr
	}
	for _, id := range result.Removed {
		cmd.Printf("Removed %s\n", id)
	}
	cmd.Printf("Removed %d sessions, freed %s\n", len(result.Removed), formatBytes(result.BytesFreed))
	return nil
}

// parseDays reads an age like "30d" or a bare number of days.
func parseDays(input string) (int, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(input), "d")
	days, err := strconv.Atoi(trimmed)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("invalid age %q, expected something like 30d", input)
	}
	return days, nil
}

func runSessionsStats(cmd *cobra.Command, args []string) error {
	stats, err := maintenanceStore().Stats()
	if err != nil {
		return err
	}
	cmd.Printf("Sessions:  %d (%d active, %d completed, %d failed)\n",
		stats.TotalSessions, stats.ActiveSessions, stats.CompletedSessions, stats.FailedSessions)
	cmd.Printf("Pages:     %d\n", stats.TotalPages)
	cmd.Printf("Disk used: %s\n", formatBytes(stats.TotalBytes))
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
