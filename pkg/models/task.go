package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the current state of an overview task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusActive indicates the task is being decomposed or executed.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusDone indicates every subtask of the task completed successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task failed or was stopped.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusActive, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can no longer change within a run.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// SubtaskStatus represents the current state of a subtask.
type SubtaskStatus string

const (
	// SubtaskStatusPending indicates the subtask has not started.
	SubtaskStatusPending SubtaskStatus = "pending"
	// SubtaskStatusActive indicates the subtask's operation is being invoked.
	SubtaskStatusActive SubtaskStatus = "active"
	// SubtaskStatusDone indicates the operation succeeded.
	SubtaskStatusDone SubtaskStatus = "done"
	// SubtaskStatusFailed indicates the operation failed or the run was stopped.
	SubtaskStatusFailed SubtaskStatus = "failed"
	// SubtaskStatusSkipped indicates the subtask was never attempted.
	SubtaskStatusSkipped SubtaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s SubtaskStatus) Valid() bool {
	switch s {
	case SubtaskStatusPending, SubtaskStatusActive, SubtaskStatusDone,
		SubtaskStatusFailed, SubtaskStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can no longer change within a run.
func (s SubtaskStatus) IsTerminal() bool {
	switch s {
	case SubtaskStatusDone, SubtaskStatusFailed, SubtaskStatusSkipped:
		return true
	default:
		return false
	}
}

// StopReason is recorded on tasks and subtasks that were failed because a
// stop was requested.
const StopReason = "stopped"

// OverviewTask is a top-level, ordered unit of work within a chat.
type OverviewTask struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ChatID is the chat that owns this task.
	ChatID string `json:"chat_id"`
	// RunID is the run that created this task.
	RunID string `json:"run_id"`
	// Ordinal is the execution position, unique and increasing within a chat.
	Ordinal int `json:"ordinal"`
	// Description is the human-readable statement of work.
	Description string `json:"description"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Reason explains a failed status (e.g. StopReason).
	Reason string `json:"reason,omitempty"`
	// Subtasks are the executable steps, in execution order.
	Subtasks []Subtask `json:"subtasks"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task status last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// AllSubtasksDone reports whether the task has at least one subtask and
// every subtask finished with status done.
func (t *OverviewTask) AllSubtasksDone() bool {
	if len(t.Subtasks) == 0 {
		return false
	}
	for _, s := range t.Subtasks {
		if s.Status != SubtaskStatusDone {
			return false
		}
	}
	return true
}

// Subtask is a leaf, tool-backed unit of work owned by one overview task.
type Subtask struct {
	// ID is the unique identifier for this subtask.
	ID string `json:"id"`
	// OverviewTaskID is the owning task.
	OverviewTaskID string `json:"overview_task_id"`
	// Ordinal mirrors the owning task's ordinal for lookup only.
	Ordinal int `json:"ordinal"`
	// Position is the execution order within the owning task.
	Position int `json:"position"`
	// Operation is the registered tool name to invoke.
	Operation string `json:"operation"`
	// Parameters is the opaque parameter object passed to the operation.
	Parameters json.RawMessage `json:"parameters"`
	// Explanation says what the step is for.
	Explanation string `json:"explanation"`
	// Status is the current state of the subtask.
	Status SubtaskStatus `json:"status"`
	// Result is the operation output, set on a terminal transition.
	Result json.RawMessage `json:"result,omitempty"`
	// Error is the last error message, if the subtask failed.
	Error string `json:"error,omitempty"`
	// Reason explains a failed status (e.g. StopReason).
	Reason string `json:"reason,omitempty"`
	// Attempts is the number of operation invocations made.
	Attempts int `json:"attempts"`
	// Fallback marks a subtask synthesized because planning failed.
	Fallback bool `json:"fallback,omitempty"`
}
