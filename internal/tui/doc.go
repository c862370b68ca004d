// Package tui provides the terminal user interface for Kairo runs.
//
// The App model shows a live view of one run: a spinner and the current
// thought, a progress bar, and the ordered task list with each task's
// subtasks. It is fed progress events through Forward and finishes with a
// RunDoneMsg. With no request given it starts with an input field, and
// each submitted request starts a new run in the same chat.
//
// Usage:
//
//	app := tui.NewApp(tui.WithStopHandler(func() { orch.RequestStop(chatID) }))
//	program := tui.NewProgram(app)
//	unsubscribe := orch.OnProgress(chatID, tui.Forward(program))
//	defer unsubscribe()
//
//	go func() {
//	    result, err := orch.StartRun(ctx, request, chatID)
//	    program.Send(tui.RunDoneMsg{Result: result, Err: err})
//	}()
//	program.Run()
//
// Ctrl+C or s asks the run to stop at the next step boundary. A second
// Ctrl+C quits.
package tui
