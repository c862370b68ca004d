package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// App is the bubbletea model for a Kairo session.
type App struct {
	header *Header
	view   *RunView
	input  *InputField
	footer *Footer

	width    int
	height   int
	running  bool
	stopping bool
	done     bool
	quitting bool
	err      error

	exitOnDone bool
	onSubmit   func(request string)
	onStop     func()
}

// AppOption configures an App.
type AppOption func(*App)

// WithSubmitHandler sets the callback that starts a run for a request.
func WithSubmitHandler(fn func(request string)) AppOption {
	return func(a *App) { a.onSubmit = fn }
}

// WithStopHandler sets the callback that requests a stop.
func WithStopHandler(fn func()) AppOption {
	return func(a *App) { a.onStop = fn }
}

// WithExitOnDone makes the app exit on the first key press after the run
// finishes instead of returning to the input field.
func WithExitOnDone() AppOption {
	return func(a *App) { a.exitOnDone = true }
}

// WithSession shows the version, chat and workspace in the header.
func WithSession(version, chatID, workspace string) AppOption {
	return func(a *App) { a.header.SetSession(version, chatID, workspace) }
}

// NewApp creates a new App.
func NewApp(opts ...AppOption) *App {
	a := &App{
		header: NewHeader(),
		view:   NewRunView(),
		input:  NewInputField(),
		footer: NewFooter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.footer.exitOnDone = a.exitOnDone
	return a
}

// NewProgram creates a Bubbletea program for app.
func NewProgram(app *App) *tea.Program {
	return tea.NewProgram(app, tea.WithAltScreen())
}

// StartRun switches the app to show a run of request that was started
// outside the input field.
func (a *App) StartRun(request string) {
	a.running = true
	a.stopping = false
	a.done = false
	a.err = nil
	a.view.Start(request)
	a.input.Blur()
	a.footer.mode = footerRunning
	a.footer.SetMessage("")
}

// Running reports whether a run is in progress.
func (a *App) Running() bool {
	return a.running
}

// Err returns the error of the last finished run.
func (a *App) Err() error {
	return a.err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	if a.running {
		return a.view.Tick
	}
	return tea.Batch(a.input.Focus(), a.view.Tick)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.header.SetWidth(msg.Width)
		a.view.SetWidth(msg.Width)
		a.input.SetWidth(msg.Width)
		return a, nil

	case RequestSubmittedMsg:
		if a.running || a.onSubmit == nil {
			return a, nil
		}
		a.StartRun(msg.Request)
		a.onSubmit(msg.Request)
		return a, nil

	case ProgressMsg:
		a.view, _ = a.view.Update(msg)
		a.footer.SetTaskCounts(a.view.Counts())
		return a, nil

	case RunDoneMsg:
		return a.finish(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.view, cmd = a.view.Update(msg)
		return a, cmd
	}

	if !a.running {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.done && a.exitOnDone {
		a.quitting = true
		return a, tea.Quit
	}

	switch msg.String() {
	case "ctrl+c":
		if a.running && !a.stopping {
			a.requestStop()
			return a, nil
		}
		a.quitting = true
		return a, tea.Quit

	case "esc":
		if !a.running {
			a.quitting = true
			return a, tea.Quit
		}
		return a, nil

	case "s":
		if a.running {
			if !a.stopping {
				a.requestStop()
			}
			return a, nil
		}
	}

	if a.running {
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) requestStop() {
	a.stopping = true
	a.footer.mode = footerStopping
	if a.onStop != nil {
		a.onStop()
	}
}

func (a *App) finish(msg RunDoneMsg) (tea.Model, tea.Cmd) {
	a.running = false
	a.stopping = false
	a.done = true
	a.err = msg.Err

	switch {
	case msg.Err != nil:
		a.view.Finish("")
		a.footer.SetRunDone(false, msg.Err.Error())
	case msg.Result != nil:
		a.view.Finish(msg.Result.Summary)
		a.footer.SetRunDone(msg.Result.Success, msg.Result.Summary)
	default:
		a.view.Finish("")
		a.footer.SetRunDone(false, "run finished")
	}

	if a.exitOnDone {
		return a, nil
	}
	return a, a.input.Focus()
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	parts := []string{a.header.View()}
	if a.running || a.done {
		parts = append(parts, a.view.View(), "")
	}
	if !a.running && !a.exitOnDone {
		parts = append(parts, a.input.View())
	}
	parts = append(parts, a.footer.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
