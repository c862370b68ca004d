package tui

import (
	"fmt"
	"strings"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jimmy24599/kairo-sub000/internal/progress"
)

// RunView displays the progress of one run.
type RunView struct {
	spinner spinner.Model
	bar     progressbar.Model
	tasks   *TaskList

	request string
	thought string
	percent int
	runID   string
	active  bool
	width   int

	// Styles
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	thoughtStyle lipgloss.Style
}

// NewRunView creates a new RunView.
func NewRunView() *RunView {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
	)

	return &RunView{
		spinner: s,
		bar:     progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(40)),
		tasks:   NewTaskList(),
		width:   80,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		thoughtStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Italic(true),
	}
}

// Start resets the view for a new run of request.
func (v *RunView) Start(request string) {
	v.request = request
	v.thought = "Starting"
	v.percent = 0
	v.runID = ""
	v.active = true
	v.tasks.SetTasks(nil)
}

// Finish marks the run as no longer active.
func (v *RunView) Finish(thought string) {
	v.active = false
	if thought != "" {
		v.thought = thought
	}
}

// SetWidth sets the view width.
func (v *RunView) SetWidth(width int) {
	v.width = width
	v.tasks.SetWidth(width)
	barWidth := width - 10
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 10 {
		barWidth = 10
	}
	v.bar.Width = barWidth
}

// Tick starts the spinner.
func (v *RunView) Tick() tea.Msg {
	return v.spinner.Tick()
}

// Update handles spinner ticks and progress events.
func (v *RunView) Update(msg tea.Msg) (*RunView, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	case ProgressMsg:
		v.apply(msg.Event)
	}
	return v, nil
}

func (v *RunView) apply(ev progress.Event) {
	// Events from an earlier run can arrive after a new one started.
	if v.runID != "" && ev.RunID != v.runID {
		return
	}
	v.runID = ev.RunID
	v.percent = ev.Percent
	if ev.Thought != "" {
		v.thought = ev.Thought
	}
	if ev.Tasks != nil || ev.Type == progress.EventTasksPlanned {
		v.tasks.SetTasks(ev.Tasks)
	}
	if ev.Final() {
		v.active = false
	}
}

// Percent returns the last reported completion percentage.
func (v *RunView) Percent() int {
	return v.percent
}

// Thought returns the last reported thought.
func (v *RunView) Thought() string {
	return v.thought
}

// Counts tallies the displayed tasks by status.
func (v *RunView) Counts() TaskCounts {
	return v.tasks.Counts()
}

// View renders the run.
func (v *RunView) View() string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render(truncate("Kairo: "+v.request, v.width)))
	b.WriteString("\n")

	if v.active {
		b.WriteString(v.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(v.thoughtStyle.Render(truncate(v.thought, v.width-4)))
	b.WriteString("\n\n")

	b.WriteString(v.bar.ViewAs(float64(v.percent) / 100))
	b.WriteString(v.labelStyle.Render(fmt.Sprintf(" %d%%", v.percent)))
	b.WriteString("\n\n")

	b.WriteString(v.tasks.View())
	return b.String()
}
