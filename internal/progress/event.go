// Package progress broadcasts run progress: every event is persisted as the
// run's live snapshot message and pushed to live observers.
package progress

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// EventType represents the type of progress event.
type EventType string

const (
	// EventRunStarted is emitted once the run is registered.
	EventRunStarted EventType = "run_started"
	// EventTasksPlanned is emitted after overview planning, or after it failed.
	EventTasksPlanned EventType = "tasks_planned"
	// EventTaskStarted indicates an overview task became active.
	EventTaskStarted EventType = "task_started"
	// EventSubtasksPlanned indicates a task's subtasks were planned.
	EventSubtasksPlanned EventType = "subtasks_planned"
	// EventSubtaskStarted indicates a subtask's operation is about to run.
	EventSubtaskStarted EventType = "subtask_started"
	// EventSubtaskFinished indicates a subtask reached a terminal status.
	EventSubtaskFinished EventType = "subtask_finished"
	// EventTaskFinished indicates an overview task reached a terminal status.
	EventTaskFinished EventType = "task_finished"
	// EventRunStopped is emitted after remaining work was failed on stop.
	EventRunStopped EventType = "run_stopped"
	// EventRunCompleted is the final event of every run.
	EventRunCompleted EventType = "run_completed"
)

// Event is one progress update. Tasks always holds the full task list of
// the run, so any single event is enough to render current state.
type Event struct {
	Type      EventType             `json:"type"`
	ChatID    string                `json:"chat_id"`
	RunID     string                `json:"run_id"`
	Tasks     []models.OverviewTask `json:"tasks"`
	Thought   string                `json:"thought,omitempty"`
	Percent   int                   `json:"percent"`
	Timestamp time.Time             `json:"timestamp"`
}

// Final reports whether no further events follow for the run.
func (e Event) Final() bool {
	return e.Type == EventRunCompleted
}

// Snapshot is the persisted form of the latest event of a run, as read back
// by late subscribers.
type Snapshot struct {
	Event
	MessageID string    `json:"message_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotFromMessage decodes a live snapshot message.
func SnapshotFromMessage(m *models.Message) (*Snapshot, error) {
	if m == nil {
		return nil, nil
	}
	if m.Variant != models.VariantTaskSnapshot {
		return nil, fmt.Errorf("message %s is not a task snapshot", m.ID)
	}
	var ev Event
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", m.ID, err)
	}
	return &Snapshot{Event: ev, MessageID: m.ID, UpdatedAt: m.UpdatedAt}, nil
}

// CloneTasks copies tasks and their subtask slices so an event does not
// share mutable state with the run that produced it.
func CloneTasks(tasks []*models.OverviewTask) []models.OverviewTask {
	out := make([]models.OverviewTask, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		c := *t
		if t.Subtasks != nil {
			c.Subtasks = append([]models.Subtask(nil), t.Subtasks...)
		}
		out = append(out, c)
	}
	return out
}

// Percent returns the rounded percentage of completed units. A unit is a
// subtask, or an overview task that has no subtasks yet. Terminal units
// count as completed.
func Percent(tasks []models.OverviewTask) int {
	var total, completed int
	for _, t := range tasks {
		if len(t.Subtasks) == 0 {
			total++
			if t.Status.IsTerminal() {
				completed++
			}
			continue
		}
		for _, s := range t.Subtasks {
			total++
			if s.Status.IsTerminal() {
				completed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
