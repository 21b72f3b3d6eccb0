package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talentdb/talent/internal/storage"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file, environment and defaults)",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cfg.String())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		discovered := dbPath
		if discovered == "" {
			discovered, _ = storage.DiscoverDatabase()
		}
		path := resolveConfigPath(discovered)
		fmt.Println(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "%s\n", color.YellowString("(file does not exist; defaults and TALENT_* variables apply)"))
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
