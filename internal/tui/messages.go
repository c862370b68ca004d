package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// ProgressMsg carries one progress event into the program.
type ProgressMsg struct {
	Event progress.Event
}

// RunDoneMsg is sent when StartRun returns.
type RunDoneMsg struct {
	Result *models.RunResult
	Err    error
}

// RequestSubmittedMsg is sent when the user submits a request.
type RequestSubmittedMsg struct {
	Request string
}

// Forward returns a progress observer that sends every event to p.
func Forward(p *tea.Program) progress.Observer {
	return func(_ context.Context, ev progress.Event) error {
		p.Send(ProgressMsg{Event: ev})
		return nil
	}
}
