package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// TaskCounts holds the count of tasks in each status.
type TaskCounts struct {
	Done    int
	Failed  int
	Running int
	Pending int
}

// footerMode selects the keyboard hints.
type footerMode int

const (
	footerIdle footerMode = iota
	footerRunning
	footerStopping
	footerDone
)

// Footer renders the status bar and keyboard hints.
type Footer struct {
	message    string
	success    bool
	mode       footerMode
	exitOnDone bool
	taskCounts TaskCounts

	// Styles
	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string) {
	f.message = message
}

// SetTaskCounts updates the task counts for display.
func (f *Footer) SetTaskCounts(counts TaskCounts) {
	f.taskCounts = counts
}

// SetRunDone shows the outcome of a finished run.
func (f *Footer) SetRunDone(success bool, message string) {
	f.mode = footerDone
	f.success = success
	f.message = message
}

// View renders the footer.
func (f *Footer) View() string {
	var left string

	total := f.taskCounts.Done + f.taskCounts.Failed + f.taskCounts.Running + f.taskCounts.Pending
	if total > 0 {
		left = fmt.Sprintf("✓%d", f.taskCounts.Done)
		if f.taskCounts.Failed > 0 {
			left += f.errorStyle.Render(fmt.Sprintf(" ✗%d", f.taskCounts.Failed))
		}
		if f.taskCounts.Pending > 0 {
			left += fmt.Sprintf(" ○%d", f.taskCounts.Pending)
		}
	}

	if f.mode == footerDone {
		if f.success {
			left = f.successStyle.Render("✓ " + f.message)
		} else {
			left = f.errorStyle.Render("✗ " + f.message)
		}
	} else if f.message != "" {
		if left != "" {
			left += " "
		}
		left += f.hintStyle.Render(f.message)
	}

	right := f.keyboardHints()
	sep := f.separatorStyle.Render(" │ ")

	if left != "" {
		return left + sep + right
	}
	return right
}

// keyboardHints returns hints for the current mode.
func (f *Footer) keyboardHints() string {
	var hints string
	switch f.mode {
	case footerRunning:
		hints = "s/ctrl+c stop"
	case footerStopping:
		hints = "stopping after the current step │ ctrl+c quit"
	case footerDone:
		if f.exitOnDone {
			hints = "press any key to exit"
		} else {
			hints = "enter new request │ esc quit"
		}
	default:
		hints = "enter submit │ esc quit"
	}
	return f.hintStyle.Render(hints)
}
