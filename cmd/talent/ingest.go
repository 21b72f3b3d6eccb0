package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/deduplication"
	"github.com/talentdb/talent/internal/ingest"
	"github.com/talentdb/talent/internal/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|->",
	Short: "Ingest a batch of source records",
	Long: `Normalize and ingest candidate records exported from a source system.

The input is a JSON array or JSON Lines file ("-" reads stdin). Each record is
matched against existing candidates and either merged or created. A bad record
is reported and skipped; it never stops the batch.

Sources: apollo, loxo, cv_upload, manual

Examples:
  talent ingest people.jsonl --source apollo
  talent ingest people.json --source loxo --dry-run
  cat cvs.jsonl | talent ingest - --source cv_upload --concurrency 8
  talent ingest people.jsonl --source apollo --rate 20 --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sourceFlag, _ := cmd.Flags().GetString("source")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		source := types.Source(sourceFlag)
		if !source.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: invalid --source %q (expected %s)\n", sourceFlag, joinSources())
			os.Exit(1)
		}

		recs, err := readRecordsArg(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(recs) == 0 {
			fmt.Printf("%s\n", color.YellowString("No records found in %s", args[0]))
			return
		}

		opts := ingestOptions(cmd, dryRun)
		runner, err := newRunner(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if dryRun && !asJSON {
			fmt.Printf("%s\n\n", color.YellowString("DRY RUN MODE - No candidates will be written"))
		}

		batch, runErr := runner.Run(ctx, source, recs)
		if batch == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
			os.Exit(1)
		}

		if asJSON {
			printBatchJSON(batch)
		} else {
			printBatchSummary(batch)
		}

		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
			os.Exit(1)
		}
	},
}

func init() {
	ingestCmd.Flags().StringP("source", "s", "", "Source system: apollo, loxo, cv_upload or manual (required)")
	ingestCmd.Flags().Bool("dry-run", false, "Show what would be created or merged without writing")
	ingestCmd.Flags().IntP("concurrency", "c", 0, "Records processed at once (default from config)")
	ingestCmd.Flags().Float64("rate", -1, "Max records started per second, 0 for unlimited (default from config)")
	ingestCmd.Flags().Bool("json", false, "Print the batch result as JSON")
	_ = ingestCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(ingestCmd)
}

// ingestOptions merges command flags over the ingest config section
func ingestOptions(cmd *cobra.Command, dryRun bool) ingest.Options {
	opts := ingest.Options{
		Concurrency:   cfg.Ingest.Concurrency,
		RatePerSecond: cfg.Ingest.RatePerSecond,
		Burst:         cfg.Ingest.Burst,
		DryRun:        dryRun,
	}
	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		opts.Concurrency = c
	}
	if r, _ := cmd.Flags().GetFloat64("rate"); r >= 0 {
		opts.RatePerSecond = r
	}
	if verbose {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return opts
}

func newRunner(opts ingest.Options) (*ingest.Runner, error) {
	engine, err := deduplication.NewEngine(store, cfg.Dedup)
	if err != nil {
		return nil, fmt.Errorf("failed to create deduplication engine: %w", err)
	}
	return ingest.NewRunner(store, engine, opts)
}

func readRecordsArg(arg string) ([]json.RawMessage, error) {
	var r io.Reader = os.Stdin
	if arg != "-" {
		f, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return ingest.ReadRecords(r)
}

func joinSources() string {
	var names []string
	for _, s := range types.AllSources() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func printBatchSummary(batch *ingest.BatchResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, item := range batch.Items {
		switch {
		case item.Failed():
			fmt.Printf("  %s #%d %s %s: %v\n", red("✗"), item.Index, externalLabel(item.ExternalID), item.Stage, item.Err)
		case item.Action == deduplication.ActionCreated:
			if !verbose {
				continue
			}
			fmt.Printf("  %s #%d %s created %s\n", green("+"), item.Index, externalLabel(item.ExternalID), item.CandidateID)
		case item.Tied > 0:
			fmt.Printf("  %s #%d %s merged into %s (%s %.2f, %d tied)\n", yellow("~"), item.Index,
				externalLabel(item.ExternalID), item.CandidateID, item.MatchedOn, item.Confidence, item.Tied)
		default:
			if !verbose {
				continue
			}
			fmt.Printf("  %s #%d %s merged into %s (%s %.2f)\n", green("="), item.Index,
				externalLabel(item.ExternalID), item.CandidateID, item.MatchedOn, item.Confidence)
		}
	}

	verb := "Ingested"
	if batch.DryRun {
		verb = "Would ingest"
	}
	mark := green("✓")
	if batch.Stats.Failed > 0 {
		mark = yellow("!")
	}
	fmt.Printf("\n%s %s %s %s records\n", mark, verb, formatNumber(batch.Stats.Total), batch.Source)
	fmt.Printf("  Created: %s\n", formatNumber(batch.Stats.Created))
	fmt.Printf("  Merged: %s\n", formatNumber(batch.Stats.Updated))
	fmt.Printf("  Failed: %s\n", formatNumber(batch.Stats.Failed))
	if !batch.DryRun {
		fmt.Printf("  Embeddings requested: %s\n", formatNumber(batch.Stats.EmbeddingRequested))
	}
	fmt.Printf("  Time taken: %s\n", formatDurationMs(int(batch.Stats.ProcessingTimeMs)))
	fmt.Printf("  %s\n\n", gray("Batch "+batch.BatchID))
}

func externalLabel(id string) string {
	if id == "" {
		return ""
	}
	return "(" + id + ")"
}

type batchJSON struct {
	*ingest.BatchResult
	Errors map[int]string `json:"errors,omitempty"`
}

func printBatchJSON(batch *ingest.BatchResult) {
	out := batchJSON{BatchResult: batch}
	for _, item := range batch.Items {
		if item.Err != nil {
			if out.Errors == nil {
				out.Errors = make(map[int]string)
			}
			out.Errors[item.Index] = item.Err.Error()
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode result: %v\n", err)
		os.Exit(1)
	}
}
