package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

var (
	statusChatID string
	statusClean  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chats, recent runs and interrupted work",
	Long: `Display the state of the project's chats.

Shows:
  - Runs interrupted by a crash (close them with --clean)
  - Active chats and their latest run
  - With --chat, the latest task list of that chat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		if err := showInterrupted(out, db, statusClean); err != nil {
			return err
		}
		if statusChatID != "" {
			return showChatSnapshot(out, db, statusChatID)
		}
		return showChats(out, db)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusChatID, "chat", "", "Show the latest task list of a chat")
	statusCmd.Flags().BoolVar(&statusClean, "clean", false, "Close runs interrupted by a crash")
}

func showInterrupted(out io.Writer, db *state.DB, clean bool) error {
	rm := state.NewRecoveryManager(db)
	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return fmt.Errorf("check interrupted runs: %w", err)
	}
	if len(interrupted) == 0 {
		return nil
	}

	if clean {
		n, err := rm.CleanAll()
		if err != nil {
			return fmt.Errorf("clean interrupted runs: %w", err)
		}
		fmt.Fprintf(out, "%s Closed %d interrupted run(s)\n\n", color.GreenString("✓"), n)
		return nil
	}

	warn := color.New(color.FgYellow)
	warn.Fprintf(out, "%d interrupted run(s):\n", len(interrupted))
	for _, r := range interrupted {
		fmt.Fprintf(out, "  %s  chat %s  pid %d  started %s ago  %d open task(s)\n",
			r.RunID, r.ChatID, r.PID, formatDuration(time.Since(r.StartedAt)), r.OpenTasks)
	}
	fmt.Fprintln(out, "Run 'kairo status --clean' to close them.")
	fmt.Fprintln(out)
	return nil
}

func showChats(out io.Writer, db *state.DB) error {
	active := models.ChatStatusActive
	chats, err := db.ListChats(&active)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		fmt.Fprintln(out, "No chats yet. Run 'kairo run <request>' to start.")
		return nil
	}

	fmt.Fprintln(out, "Chats:")
	for _, c := range chats {
		runs, err := db.ListRuns(c.ID, 1)
		if err != nil {
			return fmt.Errorf("list runs for chat %s: %w", c.ID, err)
		}
		line := fmt.Sprintf("  %s  %s", c.ID, c.Name)
		if len(runs) > 0 {
			line += "  " + colorRunState(runs[0].State)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func showChatSnapshot(out io.Writer, db *state.DB, chatID string) error {
	msg, err := db.LatestSnapshot(chatID)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	snap, err := progress.SnapshotFromMessage(msg)
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Fprintf(out, "Chat %s has no runs.\n", chatID)
		return nil
	}
	fmt.Fprintf(out, "Run %s (updated %s ago)\n", snap.RunID, formatDuration(time.Since(snap.UpdatedAt)))
	fmt.Fprint(out, progress.Render(snap.Event))
	return nil
}

func colorRunState(s models.RunState) string {
	switch s {
	case models.RunStateCompleted:
		return color.GreenString(string(s))
	case models.RunStateCompletedWithErrors:
		return color.RedString(string(s))
	case models.RunStateCancelled:
		return color.YellowString(string(s))
	default:
		return color.CyanString(string(s))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
