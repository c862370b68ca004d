package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/config"
)

var (
	workspaceFlag string
	logLevelFlag  string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kairo",
	Short: "Plan and execute coding requests",
	Long: `Kairo turns a natural-language request into a short list of overview
tasks, plans the tool operations for each task, and executes them against
the project workspace while reporting progress.

With no arguments, launches the interactive TUI where you can type a
request and watch it run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if workspaceFlag != "" {
			loaded.Workspace.Root = workspaceFlag
		}
		if logLevelFlag != "" {
			loaded.Log.Level = logLevelFlag
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		root, err := filepath.Abs(loaded.Workspace.Root)
		if err != nil {
			return fmt.Errorf("resolve workspace %s: %w", loaded.Workspace.Root, err)
		}
		loaded.Workspace.Root = root
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context(), "", "")
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Project root operations run against (default: workspace.root)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Run log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
