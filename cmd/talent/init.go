package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/config"
	"github.com/talentdb/talent/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Initialize a candidate database in the current directory",
	Long: `Initialize a candidate database by creating a .talent/ directory.

This creates:
  - .talent/ directory
  - .talent/<project-name>.db (SQLite database)
  - .talent/config.yaml (default configuration)

If no project name is provided, the current directory name is used.

Example:
  cd ~/agency
  talent init                # Creates .talent/agency.db
  talent init recruiting     # Creates .talent/recruiting.db`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectName := ""
		if len(args) > 0 {
			projectName = args[0]
		}

		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get current directory: %v\n", err)
			os.Exit(1)
		}

		newDBPath, err := storage.InitProject(cwd, projectName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Opening the database applies the schema
		ctx := context.Background()
		db, err := storage.NewStorage(ctx, &storage.Config{Backend: storage.BackendSQLite, Path: newDBPath})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize database: %v\n", err)
			os.Exit(1)
		}
		_ = db.Close()

		cfgFile := filepath.Join(cwd, storage.ProjectDirName, config.FileName)
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			if err := config.Default().Save(cfgFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %v\n", cfgFile, err)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized candidate database\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(newDBPath))
		fmt.Printf("  Config: %s\n", cyan(cfgFile))
		fmt.Println()

		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("talent ingest apollo-export.jsonl --source apollo --dry-run"))
		fmt.Printf("  %s\n", gray("talent ingest apollo-export.jsonl --source apollo"))
		fmt.Printf("  %s\n", gray("talent status"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
