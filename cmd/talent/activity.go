package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/events"
)

// Note: displayActivityEvent and related helper functions are in event_display.go

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent ingest audit events",
	Long: `Display recent entries from the ingest audit trail.

Shows:
- Candidates created and merged (with match reason and confidence)
- Ambiguous merges where several candidates tied
- Records that failed normalization or storage
- Embedding refresh requests
- Batch start and completion summaries
- Retention cleanup runs

Examples:
  talent activity                              # Show last 20 events
  talent activity -n 50                        # Show last 50 events
  talent activity --candidate <id>             # Events for one candidate
  talent activity --batch <batch-id>           # Events from one ingest batch
  talent activity --type candidate_merged      # Only merges
  talent activity --severity warning           # Only warnings (tied merges, partial batches)
  talent activity -f                           # Follow new events`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		candidateID, _ := cmd.Flags().GetString("candidate")
		batchID, _ := cmd.Flags().GetString("batch")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")
		follow, _ := cmd.Flags().GetBool("follow")

		ctx := context.Background()

		filter := events.EventFilter{
			CandidateID: candidateID,
			BatchID:     batchID,
			Type:        events.EventType(eventType),
			Severity:    events.EventSeverity(severity),
			Limit:       limit,
		}
		if eventType != "" && !filter.Type.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: unknown event type %q\n", eventType)
			os.Exit(1)
		}
		if severity != "" && !filter.Severity.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: unknown severity %q\n", severity)
			os.Exit(1)
		}

		eventList, err := fetchEvents(ctx, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
			os.Exit(1)
		}

		if len(eventList) == 0 && !follow {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No events found matching the criteria\n\n", yellow("✨"))
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Recent Activity (%d events):\n\n", cyan("📋"), len(eventList))

		// Newest last, so the feed reads top to bottom
		for i := len(eventList) - 1; i >= 0; i-- {
			displayActivityEvent(eventList[i])
		}

		if !follow {
			fmt.Println()
			return
		}

		var lastTimestamp time.Time
		if len(eventList) > 0 {
			lastTimestamp = eventList[0].Timestamp
		}
		followEvents(ctx, filter, lastTimestamp)
	},
}

func init() {
	activityCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show")
	activityCmd.Flags().StringP("candidate", "c", "", "Filter events by candidate ID")
	activityCmd.Flags().StringP("batch", "b", "", "Filter events by ingest batch ID")
	activityCmd.Flags().StringP("type", "t", "", "Filter by event type (e.g., candidate_merged, candidate_ingest_failed)")
	activityCmd.Flags().StringP("severity", "s", "", "Filter by severity (info, warning, error, critical)")
	activityCmd.Flags().BoolP("follow", "f", false, "Follow mode - watch for new events (Ctrl+C to stop)")
	rootCmd.AddCommand(activityCmd)
}

// fetchEvents uses the cheaper recent-events query when no filter is set
func fetchEvents(ctx context.Context, filter events.EventFilter) ([]*events.IngestEvent, error) {
	if filter.CandidateID == "" && filter.BatchID == "" && filter.Type == "" && filter.Severity == "" {
		return store.GetRecentIngestEvents(ctx, filter.Limit)
	}
	return store.GetIngestEvents(ctx, filter)
}

// followEvents polls for events newer than lastTimestamp until interrupted
func followEvents(ctx context.Context, filter events.EventFilter, lastTimestamp time.Time) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s Following live updates (Ctrl+C to stop)...\n\n", cyan("👁️"))

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nStopped following")
			return
		case <-ticker.C:
			next := filter
			next.AfterTime = lastTimestamp
			next.Limit = 100
			newEvents, err := store.GetIngestEvents(ctx, next)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nError fetching new events: %v\n", err)
				continue
			}

			for i := len(newEvents) - 1; i >= 0; i-- {
				displayActivityEvent(newEvents[i])
				if newEvents[i].Timestamp.After(lastTimestamp) {
					lastTimestamp = newEvents[i].Timestamp
				}
			}
		}
	}
}
