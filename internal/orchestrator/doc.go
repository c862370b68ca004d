// Package orchestrator sequences a run end to end.
//
// A run moves through these steps for one chat:
//   - Overview planning: the request is split into ordered overview tasks
//   - Subtask planning: each task is planned just before it executes
//   - Execution: subtasks run strictly one at a time, in order
//
// Every status transition is persisted before progress is broadcast, so a
// late observer can rebuild the view from LatestSnapshot. A stop request,
// made in-process with RequestStop or from another process with
// WriteStopSignal, takes effect at the next task or subtask boundary.
//
// Example usage:
//
//	dec := decompose.New(planner, db, catalogue)
//	exec := executor.New(registry)
//	orch := orchestrator.New(db, dec, exec, orchestrator.WithSignalDir(dataDir))
//	result, err := orch.StartRun(ctx, "add a contact form", chatID)
package orchestrator
