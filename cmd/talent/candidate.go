package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/deduplication"
	"github.com/talentdb/talent/internal/ingest"
	"github.com/talentdb/talent/internal/types"
)

// payloadFlags are shared by add and match
var payloadFlags = []struct {
	name, usage string
}{
	{"name", "Full name"},
	{"email", "Email address"},
	{"phone", "Phone number"},
	{"linkedin", "LinkedIn profile URL"},
	{"company", "Current company"},
	{"title", "Current title"},
	{"headline", "Headline"},
	{"location", "Location"},
	{"apollo-id", "Apollo person id"},
	{"loxo-id", "Loxo person id"},
}

func addPayloadFlags(cmd *cobra.Command) {
	for _, f := range payloadFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
	cmd.Flags().StringSlice("skills", nil, "Skills (comma-separated)")
}

// manualRecord renders the flags as a manual-source record so it goes
// through the same normalization as a batch
func manualRecord(cmd *cobra.Command) (json.RawMessage, error) {
	get := func(name string) *string {
		v, _ := cmd.Flags().GetString(name)
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	skills, _ := cmd.Flags().GetStringSlice("skills")

	payload := types.CandidatePayload{
		FullName:       get("name"),
		Email:          get("email"),
		Phone:          get("phone"),
		LinkedInURL:    get("linkedin"),
		CurrentCompany: get("company"),
		CurrentTitle:   get("title"),
		Headline:       get("headline"),
		Location:       get("location"),
		ApolloID:       get("apollo-id"),
		LoxoID:         get("loxo-id"),
		Skills:         skills,
	}
	return json.Marshal(payload)
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or merge a single candidate",
	Long: `Add one candidate from flags. If an existing candidate matches, the
values are merged into it instead.

Examples:
  talent add --name "Ann Lee" --email ann@example.com --company Acme
  talent add --linkedin linkedin.com/in/annlee --skills Go,SQL`,
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := manualRecord(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		opts := ingest.Options{Concurrency: 1}
		if verbose {
			opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
		}
		runner, err := newRunner(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		batch, err := runner.Run(context.Background(), types.SourceManual, []json.RawMessage{raw})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		item := batch.Items[0]
		if item.Failed() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", item.Err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		if item.Action == deduplication.ActionCreated {
			fmt.Printf("%s Created candidate %s\n", green("✓"), item.CandidateID)
		} else {
			fmt.Printf("%s Merged into candidate %s (%s, %.2f)\n", green("✓"), item.CandidateID, item.MatchedOn, item.Confidence)
		}
		if item.EmbeddingReason != "" {
			fmt.Printf("  %s\n", color.HiBlackString("Embedding refresh requested (%s)", item.EmbeddingReason))
		}
	},
}

var matchCmd = &cobra.Command{
	Use:   "match [file]",
	Short: "Show how a candidate would be matched, without writing",
	Long: `Score a candidate against the database and print every pool entry with
its confidence and reason. Nothing is written.

The candidate comes from the flags, or from the first record of a JSON /
JSONL file (use - for stdin) read as --source.

Examples:
  talent match --email ann@example.com
  talent match --name "Ann Lee" --company Acme --phone +15550100
  talent match --source apollo person.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := types.SourceManual
		var raw json.RawMessage
		var err error
		if len(args) == 1 {
			sourceFlag, _ := cmd.Flags().GetString("source")
			source = types.Source(sourceFlag)
			if !source.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: unknown source %q (valid: %s)\n", sourceFlag, joinSources())
				os.Exit(1)
			}
			var records []json.RawMessage
			records, err = readRecordsArg(args[0])
			if err == nil && len(records) == 0 {
				err = fmt.Errorf("%s contains no records", args[0])
			}
			if err == nil {
				raw = records[0]
			}
		} else {
			raw, err = manualRecord(cmd)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		payload, err := ingest.Normalize(source, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		engine, err := deduplication.NewEngine(store, cfg.Dedup)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		decision, err := engine.Evaluate(context.Background(), payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printDecision(decision)
	},
}

func printDecision(d *deduplication.Decision) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	if d.PoolSize == 0 {
		fmt.Printf("\n%s No existing candidate shares an identity key: would create a new record\n\n", cyan("+"))
		return
	}

	fmt.Printf("\n%s Duplicate pool (%d candidates):\n\n", cyan("🔍"), d.PoolSize)
	for i, m := range d.Ranked {
		marker := " "
		if d.Match != nil && i == 0 {
			marker = green("→")
		}
		fmt.Printf("%s %s  %.2f  %-26s %s\n", marker, m.Candidate.ID, m.Confidence, m.Reason,
			gray(candidateLabel(m.Candidate)))
	}
	fmt.Println()

	if d.Action == deduplication.ActionCreated {
		fmt.Printf("Would create a new record (no rule matched)\n\n")
		return
	}
	fmt.Printf("Would merge into %s\n", d.Match.Candidate.ID)
	if d.Tied > 0 {
		fmt.Printf("%s\n", color.YellowString("  %d other candidates tied at %.2f; the oldest wins", d.Tied, d.Match.Confidence))
	}
	fmt.Println()
}

func candidateLabel(c *types.Candidate) string {
	var parts []string
	for _, v := range []string{c.FullName, c.Email, c.CurrentCompany} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " · ")
}

func init() {
	addPayloadFlags(addCmd)
	addPayloadFlags(matchCmd)
	matchCmd.Flags().StringP("source", "s", string(types.SourceManual), "Source format of the file record")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(matchCmd)
}
