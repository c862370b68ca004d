package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/internal/tui"
	"github.com/jimmy24599/kairo-sub000/internal/version"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

var (
	runChatID string
	runTUIFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Plan and execute a request",
	Long: `Plan a request into overview tasks and execute them.

Progress is printed as tasks and subtasks finish. Press Ctrl+C once to stop
after the current step, twice to abort.

Pass --chat to continue an existing chat; task numbering and the previous
summary carry over. Use --tui for the full-screen view.`,
	Example: `  kairo run "add a contact form to the landing page"
  kairo run --chat 3f2c... "now validate the email field"
  kairo run --tui "rename the config loader"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		request := strings.TrimSpace(strings.Join(args, " "))
		if runTUIFlag {
			return runTUI(cmd.Context(), request, runChatID)
		}
		if request == "" {
			return fmt.Errorf("request required: kairo run \"<request>\"")
		}
		return runHeadless(cmd.Context(), cmd.OutOrStdout(), request, runChatID)
	},
}

func init() {
	runCmd.Flags().StringVar(&runChatID, "chat", "", "Chat to continue (default: a new chat)")
	runCmd.Flags().BoolVar(&runTUIFlag, "tui", false, "Show the full-screen progress view")
}

func chatIDOrNew(chatID string) string {
	if chatID != "" {
		return chatID
	}
	return uuid.New().String()
}

func runHeadless(ctx context.Context, out io.Writer, request, chatID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	chatID = chatIDOrNew(chatID)
	fmt.Fprintf(out, "%s %s\n", color.New(color.Faint).Sprint("chat"), chatID)

	printer := &eventPrinter{out: out}
	unsubscribe := s.orch.OnProgress(chatID, printer.observe)
	defer unsubscribe()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		stopping := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				if stopping {
					cancel()
					return
				}
				stopping = true
				if err := s.orch.RequestStop(chatID); err == nil {
					printer.printf("%s\n", color.YellowString("Stopping after the current step (Ctrl+C again to abort)..."))
				}
			}
		}
	}()

	result, err := s.orch.StartRun(ctx, request, chatID)
	if err != nil {
		return err
	}
	printer.finish(result)
	if !result.Success {
		return fmt.Errorf("run %s: %s", result.State, result.Summary)
	}
	return nil
}

// eventPrinter writes progress events as they arrive.
type eventPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *eventPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *eventPrinter) observe(_ context.Context, ev progress.Event) error {
	if line := formatEvent(ev); line != "" {
		p.printf("%s\n", line)
	}
	return nil
}

func (p *eventPrinter) finish(r *models.RunResult) {
	status := color.GreenString("✓")
	if !r.Success {
		status = color.RedString("✗")
	}
	if r.Stopped {
		status = color.YellowString("■")
	}
	p.printf("\n%s %s (%d/%d tasks)\n", status, r.Summary, r.SuccessfulTasks, r.TotalTasks)
}

// formatEvent renders one progress event as a single line, or "" for
// events not worth a line of their own.
func formatEvent(ev progress.Event) string {
	pct := fmt.Sprintf("%3d%%", ev.Percent)
	switch ev.Type {
	case progress.EventTasksPlanned:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s planned %d tasks", pct, len(ev.Tasks))
		for _, t := range ev.Tasks {
			fmt.Fprintf(&sb, "\n       %d. %s", t.Ordinal, t.Description)
		}
		return sb.String()
	case progress.EventTaskStarted, progress.EventSubtaskStarted:
		return fmt.Sprintf("%s %s", pct, color.CyanString(ev.Thought))
	case progress.EventSubtaskFinished, progress.EventTaskFinished:
		return fmt.Sprintf("%s %s", pct, ev.Thought)
	case progress.EventRunStopped:
		return fmt.Sprintf("%s %s", pct, color.YellowString(ev.Thought))
	default:
		return ""
	}
}

// runTUI shows the full-screen view. An empty request starts the
// interactive prompt; otherwise the request runs immediately and the
// program exits on the next key press after it finishes.
func runTUI(ctx context.Context, request, chatID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	// Subscriptions are per chat, so an interactive session keeps one chat
	// for all of its requests.
	chatID = chatIDOrNew(chatID)

	var p *tea.Program
	start := func(req string) {
		go func() {
			result, err := s.orch.StartRun(ctx, req, chatID)
			p.Send(tui.RunDoneMsg{Result: result, Err: err})
		}()
	}
	stop := func() { _ = s.orch.RequestStop(chatID) }

	opts := []tui.AppOption{
		tui.WithSubmitHandler(start),
		tui.WithStopHandler(stop),
		tui.WithSession(version.Get(), chatID, cfg.Workspace.Root),
	}
	if request != "" {
		opts = append(opts, tui.WithExitOnDone())
	}
	app := tui.NewApp(opts...)
	p = tui.NewProgram(app)

	unsubscribe := s.orch.OnProgress(chatID, tui.Forward(p))
	defer unsubscribe()

	if request != "" {
		app.StartRun(request)
		start(request)
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return app.Err()
}
