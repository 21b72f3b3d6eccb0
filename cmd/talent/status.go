package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database totals and the last ingest batch",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		total, err := store.CountCandidates(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		eventCount, err := store.CountIngestEvents(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s Candidate database (%s)\n\n", cyan("📊"), cfg.Storage.Backend)
		fmt.Printf("  Candidates: %s\n", formatNumber(total))

		for _, status := range []types.EmbeddingStatus{types.EmbeddingPending, types.EmbeddingFailed} {
			cands, err := store.ListCandidates(ctx, types.CandidateFilter{EmbeddingStatus: &status})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to count %s embeddings: %v\n", status, err)
				continue
			}
			fmt.Printf("  Embeddings %s: %s\n", status, formatNumber(len(cands)))
		}
		fmt.Printf("  Audit events: %s\n", formatNumber(eventCount))

		last, err := store.GetIngestEvents(ctx, events.EventFilter{Type: events.EventTypeIngestBatchCompleted, Limit: 1})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load last batch: %v\n", err)
			return
		}
		if len(last) == 0 {
			fmt.Printf("\n  %s\n\n", gray("No batches ingested yet"))
			return
		}
		fmt.Printf("\nLast batch:\n")
		displayActivityEvent(last[0])
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
