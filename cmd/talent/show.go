package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <candidate-id>",
	Short: "Show a candidate and its ingest history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		c, err := store.GetCandidate(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if c == nil {
			fmt.Fprintf(os.Stderr, "Error: candidate %s not found\n", args[0])
			os.Exit(1)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(c)
			return
		}

		printCandidate(c)

		history, err := store.GetIngestEvents(ctx, events.EventFilter{CandidateID: c.ID, Limit: 20})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load history: %v\n", err)
			return
		}
		if len(history) > 0 {
			fmt.Printf("History:\n")
			for i := len(history) - 1; i >= 0; i-- {
				displayActivityEvent(history[i])
			}
			fmt.Println()
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	Long: `List candidates, newest first.

Examples:
  talent list                            # Last 50 candidates
  talent list --source apollo -n 10
  talent list --embedding-status pending
  talent list --query acme`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		source, _ := cmd.Flags().GetString("source")
		status, _ := cmd.Flags().GetString("embedding-status")
		query, _ := cmd.Flags().GetString("query")

		filter := types.CandidateFilter{Query: query, Limit: limit}
		if source != "" {
			s := types.Source(source)
			if !s.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: invalid --source %q (expected %s)\n", source, joinSources())
				os.Exit(1)
			}
			filter.Source = &s
		}
		if status != "" {
			es := types.EmbeddingStatus(status)
			if !es.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: invalid --embedding-status %q\n", status)
				os.Exit(1)
			}
			filter.EmbeddingStatus = &es
		}

		cands, err := store.ListCandidates(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(cands) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No candidates found\n\n", yellow("✨"))
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, c := range cands {
			fmt.Printf("%s  %-9s %-10s %s\n", c.ID, c.Source, c.EmbeddingStatus, candidateLabel(c))
			if c.CurrentTitle != "" {
				fmt.Printf("    %s\n", gray(c.CurrentTitle))
			}
		}
		fmt.Printf("\n%d candidates\n", len(cands))
	},
}

func printCandidate(c *types.Candidate) {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	name := c.FullName
	if name == "" {
		name = "(no name)"
	}
	fmt.Printf("\n%s  %s\n\n", bold(name), gray(c.ID))

	field := func(label, value string) {
		if value != "" {
			fmt.Printf("  %-18s %s\n", label+":", value)
		}
	}
	field("Email", c.Email)
	field("Phone", c.Phone)
	field("LinkedIn", c.LinkedInURL)
	field("Company", c.CurrentCompany)
	field("Title", c.CurrentTitle)
	field("Headline", c.Headline)
	field("Location", c.Location)
	field("Skills", strings.Join(c.Skills, ", "))
	field("Apollo ID", c.ApolloID)
	field("Loxo ID", c.LoxoID)
	if len(c.EmploymentHistory) > 0 {
		field("Employment", truncateString(string(c.EmploymentHistory), 60))
	}
	if c.CVParsedText != "" {
		field("CV text", fmt.Sprintf("%d chars", len(c.CVParsedText)))
	}
	fmt.Println()
	field("Source", string(c.Source))
	field("Embedding", string(c.EmbeddingStatus))
	field("Version", fmt.Sprintf("%d", c.Version))
	field("Created", c.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	field("Updated", c.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if c.LastSyncedAt != nil {
		field("Last synced", c.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
}

func init() {
	showCmd.Flags().Bool("json", false, "Print the candidate as JSON")

	listCmd.Flags().IntP("limit", "n", 50, "Maximum candidates to show")
	listCmd.Flags().String("source", "", "Filter by source (apollo, loxo, cv_upload, manual)")
	listCmd.Flags().String("embedding-status", "", "Filter by embedding status (pending, processing, completed, failed)")
	listCmd.Flags().StringP("query", "q", "", "Substring match on name, email or company")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
}
