package models

import (
	"fmt"
	"time"
)

// RunState is the state of one end-to-end run.
type RunState string

const (
	RunStatePlanning            RunState = "planning"
	RunStateRunning             RunState = "running"
	RunStateCompleted           RunState = "completed"
	RunStateCompletedWithErrors RunState = "completed_with_errors"
	// RunStateCancelled is reached only when a stop was requested before any
	// task executed.
	RunStateCancelled RunState = "cancelled"
)

// IsTerminal reports whether the run has finished.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateCompletedWithErrors, RunStateCancelled:
		return true
	default:
		return false
	}
}

// Run is the persisted record of one StartRun invocation.
type Run struct {
	ID      string `json:"id"`
	ChatID  string `json:"chat_id"`
	Request string `json:"request"`
	// PID is the process that owns the run. It lets other processes detect
	// runs left behind by a crash.
	PID        int       `json:"pid"`
	State      RunState  `json:"state"`
	Summary    string    `json:"summary,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// RunResult aggregates the outcome of a run.
type RunResult struct {
	RunID           string    `json:"run_id"`
	ChatID          string    `json:"chat_id"`
	State           RunState  `json:"state"`
	Success         bool      `json:"success"`
	TotalTasks      int       `json:"total_tasks"`
	SuccessfulTasks int       `json:"successful_tasks"`
	FailedTasks     int       `json:"failed_tasks"`
	Stopped         bool      `json:"stopped"`
	Summary         string    `json:"summary"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Tally fills the counts, state, success flag and summary from the final
// task list.
func (r *RunResult) Tally(tasks []*OverviewTask, stopped, executedAny bool) {
	r.TotalTasks = len(tasks)
	r.SuccessfulTasks = 0
	r.FailedTasks = 0
	for _, t := range tasks {
		if t.Status == TaskStatusDone {
			r.SuccessfulTasks++
		} else {
			r.FailedTasks++
		}
	}
	r.Stopped = stopped

	switch {
	case stopped && !executedAny:
		r.State = RunStateCancelled
	case r.FailedTasks == 0 && !stopped:
		r.State = RunStateCompleted
	default:
		r.State = RunStateCompletedWithErrors
	}
	r.Success = r.State == RunStateCompleted && r.TotalTasks > 0
	r.Summary = r.summary()
}

func (r *RunResult) summary() string {
	switch r.State {
	case RunStateCancelled:
		return fmt.Sprintf("Run stopped before any task executed (%d tasks not started).", r.TotalTasks)
	case RunStateCompleted:
		return fmt.Sprintf("Completed all %d tasks successfully.", r.TotalTasks)
	}
	s := fmt.Sprintf("Completed %d of %d tasks; %d failed.", r.SuccessfulTasks, r.TotalTasks, r.FailedTasks)
	if r.Stopped {
		s += " Run was stopped on request."
	}
	return s
}
