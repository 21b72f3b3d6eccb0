package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/retention"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup and maintenance commands",
	Long:  `Commands for cleaning up old data and performing database maintenance.`,
}

var cleanupEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Clean up old ingest audit events",
	Long: `Delete old ingest audit events according to the retention policy.

Executes two cleanup strategies in sequence:
  1. Time-based: Delete events older than the retention period
     (error and critical events are kept for the longer critical period)
  2. Global: Trim the table to 95% of the global event limit,
     never deleting error or critical events

Configuration comes from the events section of .talent/config.yaml and
TALENT_EVENT_* environment variables.
Default retention: 30 days (regular), 90 days (critical), 100k global.

Examples:
  talent cleanup events                # Run cleanup with configured policy
  talent cleanup events --vacuum       # Run cleanup and reclaim disk space
  talent cleanup events --dry-run      # Show policy and current counts only`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		vacuum, _ := cmd.Flags().GetBool("vacuum")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		retentionCfg := cfg.Events
		if vacuum {
			retentionCfg.CleanupVacuum = true
		}
		// An explicit command runs even when periodic cleanup is switched off
		retentionCfg.CleanupEnabled = true

		fmt.Printf("Event Retention Configuration:\n")
		fmt.Printf("  Regular events: %d days\n", retentionCfg.RetentionDays)
		fmt.Printf("  Critical events: %d days\n", retentionCfg.RetentionCriticalDays)
		fmt.Printf("  Global limit: %s events\n", formatNumber(retentionCfg.GlobalLimitEvents))
		fmt.Printf("  Batch size: %d events/txn\n", retentionCfg.CleanupBatchSize)
		if dryRun {
			fmt.Printf("\n%s\n", color.YellowString("DRY RUN MODE - No events will be deleted"))
		}
		fmt.Println()

		before, err := store.CountIngestEvents(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to count events: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current state:\n")
		fmt.Printf("  Total events: %s\n", formatNumber(before))
		fmt.Println()

		if dryRun {
			fmt.Println("Dry run complete. Use without --dry-run to perform cleanup.")
			return
		}

		res, err := retention.Run(ctx, store, retentionCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Cleanup complete\n", green("✓"))
		fmt.Printf("  Time-based deleted: %s\n", formatNumber(res.TimeBasedDeleted))
		fmt.Printf("  Global limit deleted: %s\n", formatNumber(res.GlobalLimitDeleted))
		fmt.Printf("  Events remaining: %s\n", formatNumber(res.EventsRemaining))
		fmt.Printf("  Time taken: %s\n", formatDurationMs(int(res.ProcessingTimeMs)))
		switch {
		case res.VacuumRan:
			fmt.Printf("%s VACUUM complete\n", green("✓"))
		case retentionCfg.CleanupVacuum && res.TotalDeleted() > 0:
			fmt.Printf("%s\n", color.YellowString("VACUUM skipped: not supported by the %s backend or failed (see log)", cfg.Storage.Backend))
		case !retentionCfg.CleanupVacuum:
			fmt.Printf("\nNote: Use --vacuum to reclaim disk space\n")
		}
	},
}

func init() {
	cleanupEventsCmd.Flags().Bool("dry-run", false, "Show policy and current counts without deleting")
	cleanupEventsCmd.Flags().Bool("vacuum", false, "Run VACUUM after cleanup to reclaim disk space")

	cleanupCmd.AddCommand(cleanupEventsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// formatNumber formats a number with thousand separators
// Handles numbers from 0 to billions with proper formatting
func formatNumber(n int) string {
	if n < 0 {
		return fmt.Sprintf("-%s", formatNumber(-n))
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	if n < 1000000000 {
		return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d,%03d", n/1000000000, (n/1000000)%1000, (n/1000)%1000, n%1000)
}
