package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/orchestrator"
)

var stopCmd = &cobra.Command{
	Use:   "stop <chat-id>",
	Short: "Ask a running chat to stop",
	Long: `Ask the run of a chat to stop at its next task or subtask boundary.

The run may be in another kairo process on this project. Remaining tasks
are marked failed with reason "stopped".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orchestrator.WriteStopSignal(dataDir(cfg.Workspace.Root), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for chat %s\n", args[0])
		return nil
	},
}
