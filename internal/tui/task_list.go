package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jimmy24599/kairo-sub000/internal/tools"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// TaskList renders the ordered overview tasks of a run with their subtasks.
type TaskList struct {
	tasks []models.OverviewTask
	width int

	// Styles
	pendingStyle lipgloss.Style
	activeStyle  lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	reasonStyle  lipgloss.Style
	stepStyle    lipgloss.Style
}

// NewTaskList creates a new TaskList.
func NewTaskList() *TaskList {
	return &TaskList{
		width: 80,

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		activeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")). // Green
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		reasonStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true),

		stepStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

// SetTasks replaces the displayed tasks.
func (l *TaskList) SetTasks(tasks []models.OverviewTask) {
	l.tasks = tasks
}

// Tasks returns the displayed tasks.
func (l *TaskList) Tasks() []models.OverviewTask {
	return l.tasks
}

// SetWidth sets the width used to truncate long lines.
func (l *TaskList) SetWidth(width int) {
	l.width = width
}

// Counts tallies the displayed tasks by status.
func (l *TaskList) Counts() TaskCounts {
	var c TaskCounts
	for _, t := range l.tasks {
		switch t.Status {
		case models.TaskStatusDone:
			c.Done++
		case models.TaskStatusFailed:
			c.Failed++
		case models.TaskStatusActive:
			c.Running++
		default:
			c.Pending++
		}
	}
	return c
}

// View renders the task list.
func (l *TaskList) View() string {
	if len(l.tasks) == 0 {
		return l.pendingStyle.Render("No tasks planned yet.")
	}

	var b strings.Builder
	for i, t := range l.tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		icon, style := l.taskIcon(t.Status)
		line := fmt.Sprintf("%s %d. %s", icon, t.Ordinal, t.Description)
		b.WriteString(style.Render(truncate(line, l.width-2)))
		if t.Reason != "" {
			b.WriteString(" ")
			b.WriteString(l.reasonStyle.Render("(" + t.Reason + ")"))
		}

		for _, st := range t.Subtasks {
			b.WriteString("\n")
			b.WriteString(l.renderSubtask(st))
		}
	}
	return b.String()
}

func (l *TaskList) renderSubtask(st models.Subtask) string {
	icon, style := l.subtaskIcon(st.Status)

	label := st.Explanation
	if label == "" {
		label = tools.FormatAction(st.Operation, st.Parameters)
	}
	line := fmt.Sprintf("    %s %s: %s", icon, st.Operation, label)
	out := style.Render(truncate(line, l.width-2))

	switch {
	case st.Reason != "":
		out += " " + l.reasonStyle.Render("("+st.Reason+")")
	case st.Attempts > 1:
		out += " " + l.stepStyle.Render(fmt.Sprintf("(%d attempts)", st.Attempts))
	}
	return out
}

func (l *TaskList) taskIcon(status models.TaskStatus) (string, lipgloss.Style) {
	switch status {
	case models.TaskStatusDone:
		return "✓", l.doneStyle
	case models.TaskStatusFailed:
		return "✗", l.failedStyle
	case models.TaskStatusActive:
		return "▸", l.activeStyle
	default:
		return "○", l.pendingStyle
	}
}

func (l *TaskList) subtaskIcon(status models.SubtaskStatus) (string, lipgloss.Style) {
	switch status {
	case models.SubtaskStatusDone:
		return "✓", l.doneStyle
	case models.SubtaskStatusFailed:
		return "✗", l.failedStyle
	case models.SubtaskStatusActive:
		return "▸", l.activeStyle
	case models.SubtaskStatusSkipped:
		return "–", l.stepStyle
	default:
		return "·", l.stepStyle
	}
}

// truncate shortens s to maxLen runes, ending with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 3 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
