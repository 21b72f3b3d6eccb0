// Command talent ingests candidate records from source systems into a
// deduplicated candidate database.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/config"
	"github.com/talentdb/talent/internal/storage"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	cfg   *config.Config
	store storage.Storage
)

// Commands that run without an open store
var noStoreCommands = map[string]bool{
	"init":       true,
	"config":     true,
	"help":       true,
	"completion": true,
	"version":    true,
}

var rootCmd = &cobra.Command{
	Use:   "talent",
	Short: "Candidate deduplication and ingestion",
	Long: `talent keeps one record per real-world candidate.

Records from Apollo, Loxo, CV uploads and manual entry are matched against
existing candidates on LinkedIn URL, email, source ids, name + company and
phone. A match is merged into the existing record; anything else creates a
new one. Every decision is written to an audit trail.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noStoreCommands[cmd.Name()] || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
			return loadConfigOnly()
		}
		return openStore(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			store = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: discover .talent/*.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .talent/config.yaml next to the database)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show engine and ingest log lines")
}

// resolveConfigPath picks the config file: --config, else the project
// directory of the database, else .talent/config.yaml in the working directory
func resolveConfigPath(discoveredDB string) string {
	if configPath != "" {
		return configPath
	}
	if discoveredDB != "" {
		return config.PathFor(discoveredDB)
	}
	return filepath.Join(storage.ProjectDirName, config.FileName)
}

func loadConfigOnly() error {
	path := dbPath
	if path == "" {
		path, _ = storage.DiscoverDatabase()
	}
	loaded, err := config.Load(resolveConfigPath(path))
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func openStore(ctx context.Context) error {
	discovered := dbPath
	var discoverErr error
	if discovered == "" {
		discovered, discoverErr = storage.DiscoverDatabase()
	}

	loaded, err := config.Load(resolveConfigPath(discovered))
	if err != nil {
		return err
	}
	cfg = loaded
	if !verbose {
		cfg.Dedup.Quiet = true
	}

	opts := cfg.StorageOptions()
	if opts.Backend == storage.BackendSQLite {
		switch {
		case dbPath != "":
			opts.Path = dbPath
		case opts.Path != "":
		case discoverErr != nil:
			return discoverErr
		default:
			opts.Path = discovered
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	opened, err := storage.NewStorage(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", opts.Backend, err)
	}
	store = opened
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
